package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/vexfs-project/vexfs-core/internal/types"
)

// FileConfig mirrors the on-disk/CLI-overridable defaults a fresh mount
// starts from before any mount-option string is applied.
type FileConfig struct {
	DataMode                 string `mapstructure:"data_mode"`
	CowEnabled               bool   `mapstructure:"cow_enabled"`
	MmapEnabled              bool   `mapstructure:"mmap_enabled"`
	DataCompressionEnabled   bool   `mapstructure:"data_compression_enabled"`
	SpaceOptimizationEnabled bool   `mapstructure:"space_optimization_enabled"`
	DynamicSwitchingEnabled  bool   `mapstructure:"dynamic_switching_enabled"`
	MaxDataJournalSize       string `mapstructure:"max_data_journal_size"`
	LargeWriteThreshold      string `mapstructure:"large_write_threshold"`
	CacheMaxEntries          int    `mapstructure:"cache_max_entries"`
	CacheSyncIntervalSeconds int    `mapstructure:"cache_sync_interval_seconds"`
	GCIntervalSeconds        int    `mapstructure:"gc_interval_seconds"`
}

// LoadFileConfig loads VexFS's mount defaults using Viper, the way the
// teacher's device-layer config loader does: a named config file
// searched across the working directory, a config/ subdirectory, the
// repository root (for tests invoked from a nested package directory),
// the user's home, and /etc, with VEXFS_-prefixed environment variables
// overriding any of it and a missing config file falling back silently
// to defaults.
func LoadFileConfig() (*FileConfig, error) {
	v := viper.New()
	v.SetConfigName("vexfs-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../..")
	v.AddConfigPath("$HOME/.vexfs")
	v.AddConfigPath("/etc/vexfs")

	v.SetDefault("data_mode", "ordered")
	v.SetDefault("cow_enabled", true)
	v.SetDefault("mmap_enabled", true)
	v.SetDefault("data_compression_enabled", false)
	v.SetDefault("space_optimization_enabled", false)
	v.SetDefault("dynamic_switching_enabled", false)
	v.SetDefault("max_data_journal_size", "1G")
	v.SetDefault("large_write_threshold", "1M")
	v.SetDefault("cache_max_entries", 4096)
	v.SetDefault("cache_sync_interval_seconds", 30)
	v.SetDefault("gc_interval_seconds", types.DefaultGcConfig().GCIntervalSeconds)

	v.SetEnvPrefix("VEXFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ToDataJournalingConfig resolves a loaded FileConfig into the typed
// configuration ParseMountOptions/Validate operate on.
func (f *FileConfig) ToDataJournalingConfig() (types.DataJournalingConfig, error) {
	mode, err := parseDataMode(f.DataMode)
	if err != nil {
		return types.DataJournalingConfig{}, err
	}
	maxJournal, err := ParseSize(f.MaxDataJournalSize)
	if err != nil {
		return types.DataJournalingConfig{}, err
	}
	threshold, err := ParseSize(f.LargeWriteThreshold)
	if err != nil {
		return types.DataJournalingConfig{}, err
	}
	return types.DataJournalingConfig{
		Mode:                     mode,
		CowEnabled:               f.CowEnabled,
		MmapEnabled:              f.MmapEnabled,
		DataCompressionEnabled:   f.DataCompressionEnabled,
		SpaceOptimizationEnabled: f.SpaceOptimizationEnabled,
		DynamicSwitchingEnabled:  f.DynamicSwitchingEnabled,
		MaxDataJournalSize:       maxJournal,
		LargeWriteThreshold:      threshold,
	}, nil
}
