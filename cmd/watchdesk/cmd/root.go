package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/watchdesk-systems/watchdesk/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "watchdesk",
	Short: "Watchdesk alert triage engine",
	Long: `watchdesk receives security alerts from host-based detectors,
deduplicates and correlates them per source IP, checks offending
addresses against IP reputation providers, and escalates through
notification and abuse reporting.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/watchdesk/config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not load config: %v\n", err)
		os.Exit(1)
	}
}
