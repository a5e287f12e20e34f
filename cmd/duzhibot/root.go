package main

import (
	"fmt"
	"os"

	"github.com/aretw0/duzhibot/internal/cli"
	"github.com/aretw0/duzhibot/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "duzhibot",
	Short: "duzhibot is a text adventure chat bot built on state machines",
	Long: `duzhibot walks players through a small world of rooms, puzzles and a maze.
Every message goes through a lexer, a parser and the world, each a hierarchical state machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Config file (yaml or json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level")
}

// stack loads the config named by the persistent flags and wires a bot to its store.
// Callers must Close the stack.
func stack(cmd *cobra.Command) (*cli.Stack, config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := cli.LoadConfig(path)
	if err != nil {
		return nil, config.Config{}, err
	}
	st, err := cli.Build(cfg, cli.NewLogger(cfg.LogLevel, debug))
	if err != nil {
		return nil, config.Config{}, err
	}
	return st, cfg, nil
}
