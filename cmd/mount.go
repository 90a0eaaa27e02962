package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/engine"
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the volume at --device, replay its journal, and report stats",
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

		stats := m.Stats()
		cmd.Printf("mounted %s (read-only=%v): %d/%d blocks free, %.2f%% utilized, mount #%d\n",
			devicePath, m.ReadOnly(), stats.FreeBlocks, stats.TotalBlocks, stats.Utilization, stats.MountCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
}
