package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/blueprint"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of blueprint",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "blueprint version %s\n", strings.TrimSpace(blueprint.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
