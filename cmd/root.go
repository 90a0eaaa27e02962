package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	devicePath   string
)

var rootCmd = &cobra.Command{
	Use:   "vexfs",
	Short: "VexFS storage engine command-line tool",
	Long: `vexfs formats, mounts, checks, and tunes VexFS volumes: a
vector-aware filesystem's core storage engine, built around a block
device abstraction, copy-on-write extents, an MVCC version chain, a
data journal, and a background garbage collector.

Commands:
  mkfs      Format a device with a fresh VexFS layout
  mount     Mount a VexFS volume and report its stats
  fsck      Validate a volume's superblock and health
  gc        Run a garbage-collection pass against a mounted volume
  config    Get, set, or show the active runtime configuration`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "path to the backing device or image file")
}

// logger builds this invocation's zerolog.Logger from the persistent
// verbosity flags, console-writing to stderr the way ad hoc CLI tools
// in the retrieval pack do.
func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case verbose:
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func requireDevice() error {
	if devicePath == "" {
		return fmt.Errorf("--device is required")
	}
	return nil
}
