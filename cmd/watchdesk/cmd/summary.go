package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/watchdesk-systems/watchdesk/internal/store"
	"github.com/watchdesk-systems/watchdesk/internal/summary"
)

var summaryWindow time.Duration

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print an on-demand alert digest",
	Long:  `Compiles a digest of the alerts currently retained in the store and prints it to stdout.`,
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().DurationVar(&summaryWindow, "window", 0, "digest window (default: summary.window from config)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	alertStore, err := store.NewRedisStore(cfg.Redis.URL, cfg.Alerts.RetentionTTL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer alertStore.Close()

	window := summaryWindow
	if window == 0 {
		window = cfg.Summary.Window
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	digest, err := summary.NewCompiler(alertStore).Compile(ctx, window)
	fmt.Println(digest)
	return err
}
