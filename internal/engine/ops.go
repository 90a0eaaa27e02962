package engine

import "github.com/vexfs-project/vexfs-core/internal/types"

// CollectGarbage runs a full collection pass and folds its results back
// into the superblock's free-block accounting, matching the "GC
// reclaims" contract: the superblock's free count rises by exactly the
// number of blocks the pass freed.
func (m *Mount) CollectGarbage() (types.GcResult, error) {
	if err := m.requireWritable(); err != nil {
		return types.GcResult{}, err
	}
	result := m.Gc.Collect()
	result.SpaceFreed = result.BlocksFreed * uint64(m.Superblock.Superblock().BlockSize)
	if result.BlocksFreed > 0 {
		if err := m.Superblock.UpdateFreeBlocks(int64(result.BlocksFreed)); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ApplyMountOption parses and applies a single mount-option string
// against this mount's active runtime configuration, propagating it to
// the journal manager's active mode when it changes.
func (m *Mount) ApplyMountOption(option string) error {
	if err := m.requireWritable(); err != nil {
		return err
	}
	if err := m.Config.ApplyOption(option); err != nil {
		return err
	}
	m.Journal.SetMode(m.Config.Active().Mode)
	return nil
}
