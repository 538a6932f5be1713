package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mdsa",
	Short: "MDSA routes requests across domain-specialized small language models",
	Long: `MDSA classifies each request into a domain, escalates uncertain ones,
decomposes complex ones into plans and answers the rest with the domain's model,
grounded on a two-tier (global and per-domain) knowledge store.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the mdsa.yaml configuration (defaults apply when empty)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to stderr")
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func debug(cmd *cobra.Command) bool {
	d, _ := cmd.Flags().GetBool("debug")
	return d
}
