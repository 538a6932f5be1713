package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/mdsa"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mdsa",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mdsa version %s\n", strings.TrimSpace(mdsa.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
