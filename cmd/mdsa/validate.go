package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/mdsa/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config]",
	Short: "Check a configuration file",
	Long:  `Loads the configuration and reports every invalid setting, unknown domain and orphan knowledge entry.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(cmd)
		if len(args) > 0 {
			path = args[0]
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Printf("Configuration is valid! ✅ (%d domains, storage: %s)\n", len(cfg.Domains), cfg.Storage.Kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
