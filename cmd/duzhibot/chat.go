package main

import (
	"github.com/aretw0/duzhibot/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Play a session in the terminal",
	Long:  `Reads messages from standard input and prints the bot's replies. Type exit or quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := stack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		opts := cli.ChatOptions{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Headless, _ = cmd.Flags().GetBool("headless")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Chat(ctx, st, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session to play (default \"local\")")
	chatCmd.Flags().Bool("fresh", false, "Start the session over")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, no status lines)")
}
