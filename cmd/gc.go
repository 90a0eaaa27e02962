package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/engine"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Run a garbage-collection pass against the volume at --device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDevice(); err != nil {
			return err
		}
		dev, err := block.OpenFile(devicePath, 4096)
		if err != nil {
			return fmt.Errorf("open device: %w", err)
		}
		defer dev.Close()

		m, err := engine.Open(engine.Options{Device: dev, Clock: clock.System{}, Logger: logger()})
		if err != nil {
			return fmt.Errorf("mount: %w", err)
		}
		defer m.Close()

		result, err := m.CollectGarbage()
		if err != nil {
			return fmt.Errorf("collect garbage: %w", err)
		}
		cmd.Printf("freed %d blocks (%d bytes), deleted %d snapshots, optimized %d mappings (%d errors)\n",
			result.BlocksFreed, result.SpaceFreed, result.SnapshotsDeleted, result.MappingsOptimized, result.Errors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
