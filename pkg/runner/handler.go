package runner

import (
	"context"

	"github.com/aretw0/duzhibot/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the replies to one message.
	Output(ctx context.Context, msgs []domain.Message) error

	// Input reads the next message. It returns io.EOF when the source is exhausted.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (session status, errors), distinct from replies.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms reply text before it is printed, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)
