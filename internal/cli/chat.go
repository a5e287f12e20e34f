package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/duzhibot/internal/presentation/tui"
	"github.com/aretw0/duzhibot/pkg/runner"
)

// ChatOptions configures a terminal chat.
type ChatOptions struct {
	SessionID string
	// Fresh deletes the session before playing it.
	Fresh    bool
	JSON     bool
	Headless bool

	In  io.Reader
	Out io.Writer
}

// Chat plays one session from the terminal until exit, EOF or an interrupt.
func Chat(ctx context.Context, st *Stack, opts ChatOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.SessionID == "" {
		opts.SessionID = runner.DefaultSessionID
	}
	quiet := opts.JSON || opts.Headless

	if opts.Fresh {
		if err := st.Manager.Delete(ctx, opts.SessionID); err != nil {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		st.Logger.Info("Session reset", "session_id", opts.SessionID)
	}
	if !quiet {
		tui.PrintBanner(opts.Out)
	}

	var handler runner.IOHandler
	switch {
	case opts.JSON:
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	case !opts.Headless && tui.IsTerminal(opts.Out):
		render, err := tui.NewRenderer()
		if err != nil {
			st.Logger.Warn("Markdown rendering disabled", "err", err)
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, runner.WithTextHandlerRenderer(render))
	default:
		handler = runner.NewTextHandler(opts.In, opts.Out)
	}

	r := runner.NewRunner(
		runner.WithManager(st.Manager),
		runner.WithLogger(st.Logger),
		runner.WithInputHandler(handler),
		runner.WithHeadless(opts.Headless),
		runner.WithSessionID(opts.SessionID),
	)
	err := r.Run(ctx)

	if !quiet {
		if state, lerr := st.Manager.Load(context.WithoutCancel(ctx), opts.SessionID); lerr == nil {
			printSystemMessage(opts.Out, "Session '%s' saved at '%s'.", opts.SessionID, state.Path)
		}
	}
	return handleExecutionError(err)
}
