package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/mdsa/internal/cli"
)

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Manage the knowledge store",
}

var ragAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a document to the global corpus, or to a domain corpus with --domain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.AddKnowledge(knowledgeOptions(cmd, args))
	},
}

var ragSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve documents for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.SearchKnowledge(knowledgeOptions(cmd, args))
	},
}

func knowledgeOptions(cmd *cobra.Command, args []string) cli.KnowledgeOptions {
	dom, _ := cmd.Flags().GetString("domain")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	topK, _ := cmd.Flags().GetInt("top-k")
	asJSON, _ := cmd.Flags().GetBool("json")
	return cli.KnowledgeOptions{
		ConfigPath: configPath(cmd),
		Domain:     dom,
		Content:    strings.Join(args, " "),
		Tags:       tags,
		TopK:       topK,
		JSON:       asJSON,
		Debug:      debug(cmd),
	}
}

func init() {
	rootCmd.AddCommand(ragCmd)
	ragCmd.AddCommand(ragAddCmd, ragSearchCmd)

	ragCmd.PersistentFlags().StringP("domain", "d", "", "Domain corpus (global when empty)")
	ragCmd.PersistentFlags().StringSlice("tags", nil, "Comma-separated tags")
	ragSearchCmd.Flags().Int("top-k", 0, "Results per tier (default orchestrator top_k)")
	ragSearchCmd.Flags().Bool("json", false, "Print results with scores as JSON")
}
