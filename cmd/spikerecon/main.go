package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spikerecon",
		Short: "Reconstruct neuron activity from distributed engine logs",
		Long: `spikerecon merges the event logs written by the engines of a distributed
spiking-network deployment into one synchronized stream.

It rebuilds a dense per-tick activation table for the monitored neurons,
splits it into trigger-bounded epochs, and builds per-engine epoch models
so replica engines can be compared.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Record directory (deployment map plus one directory per engine)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <root>/spikerecon.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newReconstructCmd(),
		newEpochsCmd(),
		newCompareCmd(),
		newSpeedCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
