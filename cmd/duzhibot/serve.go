package main

import (
	"github.com/aretw0/duzhibot/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LINE webhook server",
	Long: `Starts the bot behind an HTTP server. LINE delivers messages to POST /callback;
GET /graph, /events, /health, /info and /metrics serve tooling and monitoring.

A channel secret (LINE_CHANNEL_SECRET) is required; --insecure accepts unsigned webhooks
for local testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := stack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
			cfg.Line.InsecureWebhook = true
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Serve(ctx, st, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config and PORT)")
	serveCmd.Flags().Bool("insecure", false, "Accept unsigned webhook requests when no channel secret is set")
}
