package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/duzhibot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of duzhibot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "duzhibot version %s\n", strings.TrimSpace(duzhibot.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
