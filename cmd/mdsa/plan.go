package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/mdsa/internal/cli"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Export the execution plan of a query",
	Long:  `Decomposes the query and outputs a Mermaid diagram (graph TD) of its tasks and their dependencies.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, _ := cmd.Flags().GetBool("run")
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.Plan(cli.PlanOptions{
			ConfigPath: configPath(cmd),
			Query:      strings.Join(args, " "),
			Run:        run,
			JSON:       asJSON,
			Debug:      debug(cmd),
		})
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <query>",
	Short: "Print the domain a query routes to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.Classify(cli.PlanOptions{
			ConfigPath: configPath(cmd),
			Query:      strings.Join(args, " "),
			JSON:       asJSON,
			Debug:      debug(cmd),
		})
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(classifyCmd)
	planCmd.Flags().Bool("run", false, "Execute the query and color tasks by outcome")
	planCmd.Flags().Bool("json", false, "Print complexity, plan and result as JSON")
	classifyCmd.Flags().Bool("json", false, "Print per-domain scores as JSON")
}
