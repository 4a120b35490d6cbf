package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sawmill/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sawmill %s\n", config.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
