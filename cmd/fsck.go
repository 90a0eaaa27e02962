package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/superblock"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Validate the superblock at --device and report its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDevice(); err != nil {
			return err
		}
		dev, err := block.OpenFile(devicePath, 4096)
		if err != nil {
			return fmt.Errorf("open device: %w", err)
		}
		defer dev.Close()

		mgr := superblock.NewManager(dev, clock.System{}).WithLogger(logger())
		sb, err := mgr.LoadAndValidate()
		if err != nil {
			return fmt.Errorf("superblock invalid: %w", err)
		}

		health := mgr.ValidateHealth()
		cmd.Printf("volume %q: healthy=%v needs-fsck=%v error-state=%v\n",
			sb.VolumeName, health.Healthy(), mgr.NeedsFsck(), health.ErrorState)
		if health.BlockUtilizationHigh {
			cmd.Println("warning: block utilization above 90%")
		}
		if health.InodeUtilizationHigh {
			cmd.Println("warning: inode utilization above 90%")
		}
		if health.MountCountHigh {
			cmd.Println("warning: mount count approaching its maximum")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fsckCmd)
}
