package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/mdsa/internal/cli"
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer a query, or start an interactive session",
	Long: `Processes one query and prints the result. Without a query it reads one
query per line from stdin until "exit", EOF or Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reqCtx, _ := cmd.Flags().GetString("context")
		forced, _ := cmd.Flags().GetString("domain")
		asJSON, _ := cmd.Flags().GetBool("json")
		headless, _ := cmd.Flags().GetBool("headless")
		quiet, _ := cmd.Flags().GetBool("quiet")
		return cli.Ask(cli.AskOptions{
			ConfigPath: configPath(cmd),
			Query:      strings.Join(args, " "),
			Context:    reqCtx,
			Domain:     forced,
			JSON:       asJSON,
			Headless:   headless,
			Debug:      debug(cmd),
			Quiet:      quiet,
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().String("context", "", "Request context as a JSON object (e.g. '{\"top_k\": 5}')")
	askCmd.Flags().StringP("domain", "d", "", "Skip classification and use this domain")
	askCmd.Flags().Bool("json", false, "Print the full result as JSON")
	askCmd.Flags().Bool("headless", false, "Interactive mode without banner or prompts (for pipes)")
	askCmd.Flags().BoolP("quiet", "q", false, "Suppress system messages")
}
