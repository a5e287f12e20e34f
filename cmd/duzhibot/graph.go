package main

import (
	"fmt"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export a state machine",
	Long:  `Prints the world, lexer or parser machine as JSON or as a Mermaid state diagram.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := stack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		machine, _ := cmd.Flags().GetString("machine")
		format, _ := cmd.Flags().GetString("format")
		session, _ := cmd.Flags().GetString("session")

		out, err := cli.RenderGraph(cmd.Context(), st, machine, format, session)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("machine", "m", duzhibot.MachineWorld, "Machine to export: world, lexer or parser")
	graphCmd.Flags().StringP("format", "f", cli.FormatMermaid, "Output format: mermaid or json")
	graphCmd.Flags().String("session", "", "Highlight the trail of this session (world, mermaid only)")
}
