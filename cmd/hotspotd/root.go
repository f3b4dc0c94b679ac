package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	configFile string
	stateDir   string
	verbose    bool
	jsonLogs   bool
)

// rootCmd is hotspotd's single command: there is no subcommand tree,
// since the daemon itself is the only externally invoked entrypoint. The
// control plane (out of scope here) talks to the running process, not to
// additional CLI verbs.
var rootCmd = &cobra.Command{
	Use:   "hotspotd",
	Short: "hotspotd turns this host into a Wi-Fi access point for tethering a VR headset.",
	Long: `hotspotd is a privileged daemon that brings up a dedicated Wi-Fi access
point, supervises the hostapd-family backend that serves it, reconciles the
host firewall and network tuning around it, and keeps it healthy once
running. It owns its configuration and exposes its lifecycle operations to
an out-of-process control plane.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

// Execute adds all child commands (none, today) and runs rootCmd to
// completion against ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config.yaml (default is <state-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "daemon state directory (default /var/lib/hotspotd, or $HOTSPOTD_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of text")
}
