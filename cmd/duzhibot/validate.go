package main

import (
	"github.com/aretw0/duzhibot/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the machines for consistency",
	Long:  `Compiles the lexer, parser and world and reports unreachable or dead-end states.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := stack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		return cli.Validate(st.Bot, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
