package config

import (
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Validate checks cfg against the bounds and mode-specific requirements
// spec.md §4.6 and §4.8 impose: FullDataJournaling needs a non-zero
// journal budget, and the large-write threshold may never exceed the
// journal budget it draws from.
func Validate(cfg types.DataJournalingConfig) error {
	if cfg.Mode == types.FullDataJournaling {
		if cfg.MaxDataJournalSize == 0 || cfg.LargeWriteThreshold == 0 {
			return vexerrors.New(vexerrors.KindInvalidArgument, "full data journaling requires a non-zero journal size and large-write threshold")
		}
	}
	if cfg.LargeWriteThreshold > cfg.MaxDataJournalSize {
		return vexerrors.New(vexerrors.KindInvalidArgument, "large_write_threshold exceeds max_data_journal_size")
	}
	return nil
}

// Target selects where a RuntimeConfig's active configuration is
// durably stored.
type Target = types.ConfigPersistence

// RuntimeConfig is the mount-time handle over the active
// data-journaling configuration. Every change goes through Apply,
// which validates first and rolls back to the previously-applied
// configuration on failure, so a rejected change never leaves the
// filesystem in a half-updated state.
type RuntimeConfig struct {
	mu     sync.RWMutex
	active types.DataJournalingConfig
	target Target
}

// NewRuntimeConfig constructs a RuntimeConfig starting from cfg,
// persisted via target. cfg must already be valid.
func NewRuntimeConfig(cfg types.DataJournalingConfig, target Target) (*RuntimeConfig, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &RuntimeConfig{active: cfg, target: target}, nil
}

// Active returns the currently applied configuration.
func (r *RuntimeConfig) Active() types.DataJournalingConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Target reports where the active configuration is persisted.
func (r *RuntimeConfig) Target() Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

// Apply validates proposed and, if it passes, replaces the active
// configuration with it. On validation failure the active
// configuration is left untouched (there is nothing to roll back to
// but itself, since nothing was mutated) and the error is returned.
func (r *RuntimeConfig) Apply(proposed types.DataJournalingConfig) error {
	if err := Validate(proposed); err != nil {
		return err
	}
	if proposed.Mode != r.Active().Mode {
		r.mu.RLock()
		dynamic := r.active.DynamicSwitchingEnabled
		r.mu.RUnlock()
		if !dynamic {
			return vexerrors.New(vexerrors.KindInvalidOperation, "mode switch requires dynamic_switching_enabled")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = proposed
	return nil
}

// ApplyOption parses a single mount-option string against the active
// configuration and applies the result, validating and rolling back
// exactly as Apply does.
func (r *RuntimeConfig) ApplyOption(option string) error {
	r.mu.RLock()
	base := GenerateMountOptions(r.active)
	r.mu.RUnlock()

	proposed, err := ParseMountOptions(base + "," + option)
	if err != nil {
		return err
	}
	return r.Apply(proposed)
}
