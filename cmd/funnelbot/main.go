// cmd/funnelbot/main.go
//
// geofunnel – command-line entry point.
//
// Subcommands
// -----------
//
//	serve    – run the webhook server, funnel, and admin surface.
//	migrate  – create tables and seed destinations, then exit.
//	stats    – print aggregate statistics to stdout.
//
// All subcommands read the same configuration (conf/global.yaml, optional
// conf/.env, FUNNEL_* overrides) and resolve vault: references before
// touching the database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanizio/geofunnel/internal/logger"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:           "funnelbot",
		Short:         "Geo-verified Telegram funnel bot",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.Console(logLevel)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "console log level before config is loaded")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
