package ports

import (
	"context"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/hsm"
)

// Bot is the interface adapters (HTTP, MCP, terminal) drive. It keeps no per-session memory;
// everything a session needs lives in the State passed in.
type Bot interface {
	// NewState returns the state of a session that has never spoken.
	NewState(sessionID string) *domain.State

	// Exec runs text against state. It reports whether the text was an available command and
	// returns the next state; state itself is left untouched.
	Exec(ctx context.Context, state *domain.State, text string, reply domain.ReplyFunc) (*domain.State, bool, error)

	// Triggers lists the commands available at a world path.
	Triggers(path string) []string

	// Usage renders the available commands at a world path as the user would type them.
	Usage(path string) []string

	// Graph exports one of the bot's machines ("world", "lexer" or "parser").
	Graph(machine string) (hsm.Graph, error)
}

// ReplySender delivers replies to the channel a message came from.
type ReplySender interface {
	Reply(ctx context.Context, replyToken string, msgs []domain.Message) error
}
