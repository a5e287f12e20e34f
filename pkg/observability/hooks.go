package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/duzhibot/pkg/domain"
)

// Logging returns hooks that log every event at debug level, commands at info.
func Logging(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, ev *domain.StateEvent) {
			logger.DebugContext(ctx, "state_enter", "session_id", ev.SessionID, "path", ev.Path)
		},
		OnStateLeave: func(ctx context.Context, ev *domain.StateEvent) {
			logger.DebugContext(ctx, "state_leave", "session_id", ev.SessionID, "path", ev.Path)
		},
		OnCommand: func(ctx context.Context, ev *domain.CommandEvent) {
			logger.InfoContext(ctx, "command",
				"session_id", ev.SessionID,
				"command", ev.Command,
				"accepted", ev.Accepted,
				"source", ev.Source,
				"dest", ev.Dest,
			)
		},
	}
}

// Chain runs each hook set in order. Nil fields are skipped.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, ev *domain.StateEvent) {
			for _, h := range hooks {
				if h.OnStateEnter != nil {
					h.OnStateEnter(ctx, ev)
				}
			}
		},
		OnStateLeave: func(ctx context.Context, ev *domain.StateEvent) {
			for _, h := range hooks {
				if h.OnStateLeave != nil {
					h.OnStateLeave(ctx, ev)
				}
			}
		},
		OnCommand: func(ctx context.Context, ev *domain.CommandEvent) {
			for _, h := range hooks {
				if h.OnCommand != nil {
					h.OnCommand(ctx, ev)
				}
			}
		},
	}
}
