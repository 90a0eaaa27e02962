package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/types"
)

func TestParseSizeSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1K", 1024},
		{"128M", 128 * 1 << 20},
		{"2G", 2 * 1 << 30},
		{"1T", 1 << 40},
		{"4096", 4096},
	}
	for _, c := range cases {
		got, err := ParseSize(c.in)
		require.NoError(t, err)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestFormatSizeRoundTrip(t *testing.T) {
	for _, n := range []uint64{1024, 128 * (1 << 20), 2 * (1 << 30), 4096} {
		s := FormatSize(n)
		back, err := ParseSize(s)
		require.NoError(t, err)
		require.Equal(t, n, back)
	}
}

// TestParseMountOptionsSeedScenario implements the mount-option parsing
// example from the testable-properties set.
func TestParseMountOptionsSeedScenario(t *testing.T) {
	cfg, err := ParseMountOptions("data=journal,cow,max_data_journal=128M")
	require.NoError(t, err)
	require.Equal(t, types.FullDataJournaling, cfg.Mode)
	require.True(t, cfg.CowEnabled)
	require.Equal(t, uint64(134217728), cfg.MaxDataJournalSize)
}

func TestParseMountOptionsInvalidDataMode(t *testing.T) {
	_, err := ParseMountOptions("data=foo")
	require.Error(t, err)
}

func TestUnknownOptionsAreIgnored(t *testing.T) {
	cfg, err := ParseMountOptions("data=ordered,some_other_subsystem_flag")
	require.NoError(t, err)
	require.Equal(t, types.OrderedData, cfg.Mode)
}

// TestMountOptionRoundTripSeedScenario implements seed test 6.
func TestMountOptionRoundTripSeedScenario(t *testing.T) {
	original := types.DataJournalingConfig{
		Mode:                types.FullDataJournaling,
		CowEnabled:          true,
		MmapEnabled:         false,
		MaxDataJournalSize:  134217728,
		LargeWriteThreshold: 1048576,
	}

	generated := GenerateMountOptions(original)
	parsed, err := ParseMountOptions(generated)
	require.NoError(t, err)
	require.Equal(t, original, parsed)
}

func TestValidateRejectsFullJournalingWithZeroSize(t *testing.T) {
	cfg := types.DataJournalingConfig{Mode: types.FullDataJournaling}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsThresholdExceedingJournalSize(t *testing.T) {
	cfg := types.DataJournalingConfig{
		Mode:                types.OrderedData,
		MaxDataJournalSize:  1024,
		LargeWriteThreshold: 2048,
	}
	require.Error(t, Validate(cfg))
}

func TestRuntimeConfigRollsBackOnInvalidApply(t *testing.T) {
	good := types.DefaultDataJournalingConfig()
	rc, err := NewRuntimeConfig(good, types.PersistRuntimeOnly)
	require.NoError(t, err)

	bad := good
	bad.LargeWriteThreshold = good.MaxDataJournalSize + 1
	err = rc.Apply(bad)
	require.Error(t, err)
	require.Equal(t, good, rc.Active(), "a rejected Apply must leave the active configuration untouched")
}

func TestRuntimeConfigModeSwitchRequiresDynamicSwitching(t *testing.T) {
	cfg := types.DefaultDataJournalingConfig()
	cfg.DynamicSwitchingEnabled = false
	rc, err := NewRuntimeConfig(cfg, types.PersistRuntimeOnly)
	require.NoError(t, err)

	next := cfg
	next.Mode = types.FullDataJournaling
	next.MaxDataJournalSize = 1 << 20
	next.LargeWriteThreshold = 1 << 10
	err = rc.Apply(next)
	require.Error(t, err)
}
