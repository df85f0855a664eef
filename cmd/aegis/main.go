package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Self-healing control loop for application telemetry",
	Long: `aegis scores incoming telemetry, web3 and log events for anomalies,
classifies them, gates remediation through rate-limit and peak-hour policy,
and executes healing actions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (defaults to $AEGIS_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
