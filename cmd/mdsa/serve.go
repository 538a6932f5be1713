package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/mdsa/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the orchestrator behind a JSON API with a Server-Sent Events stream
and a Prometheus /metrics endpoint. With --watch, domains added to the
configuration file are registered without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		watch, _ := cmd.Flags().GetBool("watch")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		return cli.Serve(cli.ServeOptions{
			ConfigPath: configPath(cmd),
			Addr:       addr,
			Watch:      watch,
			Debug:      debug(cmd),
			JSON:       jsonLogs,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().BoolP("watch", "w", false, "Register domains added to the config file while running")
	serveCmd.Flags().Bool("json-logs", false, "Write logs as JSON")
}
