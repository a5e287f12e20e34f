package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/session"
)

// DefaultSessionID is the session a runner plays when none is configured.
const DefaultSessionID = "local"

// ErrNoManager is returned by Run when the runner has no session manager.
var ErrNoManager = errors.New("runner has no session manager")

// Runner reads messages, hands them to a session.Manager and prints the replies.
type Runner struct {
	Handler   IOHandler
	Manager   *session.Manager
	SessionID string
	Logger    *slog.Logger

	// Headless suppresses the greeting and status lines.
	Headless bool
	// Renderer is used by the default TextHandler.
	Renderer ContentRenderer
}

// NewRunner creates a Runner. Without WithInputHandler it talks over Stdin and Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{SessionID: DefaultSessionID}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Run executes the read-handle-print loop until the input ends, the user types exit or quit,
// or ctx is cancelled. An interrupt from the terminal ends the loop without error.
func (r *Runner) Run(ctx context.Context) error {
	if r.Manager == nil {
		return ErrNoManager
	}
	handler := r.resolveHandler()

	signals := NewSignalManager(ctx)
	defer signals.Stop()

	state, err := r.Manager.LoadOrStart(ctx, r.SessionID)
	if err != nil {
		return err
	}
	if !r.Headless {
		msg := fmt.Sprintf("Session %s at %s. Type /help for commands, exit to quit.", r.SessionID, state.Path)
		if err := handler.SystemOutput(ctx, msg); err != nil {
			return err
		}
	}

	for {
		text, err := handler.Input(signals.Context())
		if err != nil {
			signals.CheckRace()
			switch {
			case signals.Context().Err() != nil:
				r.Logger.Debug("runner interrupted", "err", signals.Context().Err())
				return nil
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, ErrInputTooLarge), errors.Is(err, ErrInvalidUTF8):
				if err := handler.SystemOutput(ctx, err.Error()); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("input error: %w", err)
		}

		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		var replies domain.Replies
		next, ok, err := r.Manager.Handle(ctx, r.SessionID, text, replies.Add)
		if err != nil {
			return fmt.Errorf("handle message: %w", err)
		}
		r.Logger.Debug("message handled", "session_id", r.SessionID, "accepted", ok, "path", next.Path)

		if err := handler.Output(ctx, replies.Messages); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout, WithTextHandlerRenderer(r.Renderer))
	}
	return r.Handler
}
