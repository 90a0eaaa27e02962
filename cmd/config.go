package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/config"
	"github.com/vexfs-project/vexfs-core/internal/engine"
	"github.com/vexfs-project/vexfs-core/internal/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get, set, or show the active runtime configuration of --device",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the mounted volume's active data-journaling configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := openForConfig()
		if err != nil {
			return err
		}
		defer closeFn()
		cmd.Println(config.GenerateMountOptions(m.Config.Active()))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <mount-option>",
	Short: "Apply a single mount-option string (e.g. data=journal,cow) to the volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := openForConfig()
		if err != nil {
			return err
		}
		defer closeFn()
		if err := m.ApplyMountOption(args[0]); err != nil {
			return fmt.Errorf("apply mount option: %w", err)
		}
		cmd.Println(config.GenerateMountOptions(m.Config.Active()))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a single configuration key's current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := openForConfig()
		if err != nil {
			return err
		}
		defer closeFn()
		active := m.Config.Active()
		value, ok := configValue(active, args[0])
		if !ok {
			return fmt.Errorf("unknown configuration key %q", args[0])
		}
		cmd.Println(value)
		return nil
	},
}

func openForConfig() (*engine.Mount, func(), error) {
	if err := requireDevice(); err != nil {
		return nil, nil, err
	}
	dev, err := block.OpenFile(devicePath, 4096)
	if err != nil {
		return nil, nil, fmt.Errorf("open device: %w", err)
	}
	m, err := engine.Open(engine.Options{Device: dev, Clock: clock.System{}, Logger: logger()})
	if err != nil {
		dev.Close()
		return nil, nil, fmt.Errorf("mount: %w", err)
	}
	return m, func() { m.Close(); dev.Close() }, nil
}

func configValue(cfg types.DataJournalingConfig, key string) (string, bool) {
	switch key {
	case "data":
		return cfg.Mode.String(), true
	case "cow":
		return fmt.Sprintf("%v", cfg.CowEnabled), true
	case "mmap":
		return fmt.Sprintf("%v", cfg.MmapEnabled), true
	case "compress":
		return fmt.Sprintf("%v", cfg.DataCompressionEnabled), true
	case "optimize":
		return fmt.Sprintf("%v", cfg.SpaceOptimizationEnabled), true
	case "dynamic":
		return fmt.Sprintf("%v", cfg.DynamicSwitchingEnabled), true
	case "max_data_journal":
		return config.FormatSize(cfg.MaxDataJournalSize), true
	case "large_write_threshold":
		return config.FormatSize(cfg.LargeWriteThreshold), true
	default:
		return "", false
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configGetCmd)
}
