package main

import (
	"strings"

	"github.com/aretw0/duzhibot/internal/cli"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse <message>...",
	Short: "Show how a message is read",
	Long:  `Prints the tokens of a message and the command the parser makes of it, as JSON.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := stack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		return cli.Explain(cmd.Context(), st.Bot, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
