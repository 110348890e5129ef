// Package cli implements the metrics-bridge command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "metrics-bridge",
	Short: "Metrics dashboard and admin bridge for a game server",
	Long: `metrics-bridge samples tick performance and host state from a game server
and serves it over an authenticated HTTP API, together with console,
teleport and user management endpoints for admins.

Running it without a subcommand is the same as "metrics-bridge serve".`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to the JSON config file (default config/metricsbridge.json)")
	flags.Int("port", 0, "HTTP port to listen on")
	flags.String("web-dir", "", "directory with the static dashboard")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("host-mode", "", "game server host: local or rcon")
	flags.String("rcon-addr", "", "RCON address when host-mode is rcon")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(passwdCmd)
}
