package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/duzhibot/internal/config"
	httpadapter "github.com/aretw0/duzhibot/pkg/adapters/http"
	"github.com/aretw0/duzhibot/pkg/adapters/line"
	"github.com/aretw0/duzhibot/pkg/adapters/mcp"
)

// ShutdownTimeout bounds how long in-flight webhooks may finish after a stop signal.
const ShutdownTimeout = 5 * time.Second

// NewWebhookHandler builds the HTTP surface of st: the LINE webhook, graphs, events and metrics.
func NewWebhookHandler(st *Stack, cfg config.LineConfig) (http.Handler, error) {
	opts := []httpadapter.Option{
		httpadapter.WithChannelSecret(cfg.ChannelSecret),
		httpadapter.WithMetrics(st.Metrics),
		httpadapter.WithLogger(st.Logger),
	}
	if cfg.InsecureWebhook {
		opts = append(opts, httpadapter.WithInsecureWebhook())
	}
	if cfg.ChannelAccessToken != "" {
		var lineOpts []line.ClientOption
		if cfg.BaseURL != "" {
			lineOpts = append(lineOpts, line.WithBaseURL(cfg.BaseURL))
		}
		client, err := line.NewClient(cfg.ChannelAccessToken, lineOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpadapter.WithReplySender(client))
	} else {
		st.Logger.Warn("No channel access token configured, replies are only logged")
	}
	return httpadapter.NewServer(st.Manager, st.Bot, opts...).Handler(), nil
}

// Serve runs the webhook server on cfg.Port until ctx is done, then shuts it down gracefully. It
// refuses to start without a channel secret unless the insecure webhook mode is set.
func Serve(ctx context.Context, st *Stack, cfg config.Config) error {
	if err := cfg.Line.CheckWebhook(); err != nil {
		return err
	}
	handler, err := NewWebhookHandler(st, cfg.Line)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		st.Logger.Info("Starting duzhibot server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		st.Logger.Info("Start shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			st.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		st.Logger.Info("Server stopped gracefully")
		return nil
	}
}

// Transports of ServeMCP.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ServeMCP exposes st to MCP clients over stdio or SSE.
func ServeMCP(ctx context.Context, st *Stack, transport string, port int) error {
	srv := mcp.NewServer(st.Manager, st.Bot, mcp.WithLogger(st.Logger))
	switch transport {
	case TransportStdio:
		st.Logger.Info("Starting MCP server", "transport", transport)
		return srv.ServeStdio()
	case TransportSSE:
		st.Logger.Info("Starting MCP server", "transport", transport, "port", port)
		if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		st.Logger.Info("MCP server stopped gracefully")
		return nil
	}
	return fmt.Errorf("unknown transport %q, supported: %s, %s", transport, TransportStdio, TransportSSE)
}
