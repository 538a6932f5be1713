package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/mdsa/internal/cli"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Execute a file of queries concurrently",
	Long: `Reads one query per line ("-" for stdin, '#' starts a comment), routes each
one and executes them concurrently up to models.max_concurrent. Prints a JSON report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Batch(cli.BatchOptions{
			ConfigPath: configPath(cmd),
			Path:       args[0],
			Debug:      debug(cmd),
		})
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
