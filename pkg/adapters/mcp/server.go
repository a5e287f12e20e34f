// Package mcp exposes the bot as a Model Context Protocol server, so an assistant can play the
// game and inspect its machines.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/internal/logging"
	"github.com/aretw0/duzhibot/internal/presentation/graph"
	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURIPrefix prefixes the machine name in graph resource URIs.
const GraphURIPrefix = "duzhibot://graph/"

// Sessions runs messages against persisted sessions. session.Manager implements it.
type Sessions interface {
	Handle(ctx context.Context, sessionID, text string, reply domain.ReplyFunc) (*domain.State, bool, error)
	Load(ctx context.Context, sessionID string) (*domain.State, error)
}

// SendMessageArgs are the arguments of send_message.
type SendMessageArgs struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// SendMessageResult is what one message did to a session.
type SendMessageResult struct {
	State    *domain.State     `json:"state" jsonschema_description:"The session after the message"`
	Accepted bool              `json:"accepted" jsonschema_description:"Whether the text was an available command"`
	Replies  []domain.Message  `json:"replies" jsonschema_description:"What the bot answered"`
	Diff     *domain.StateDiff `json:"diff,omitempty" jsonschema_description:"What changed in the session, absent when nothing did"`
}

// SessionArgs name a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// CommandsResult lists what a session can do next.
type CommandsResult struct {
	Path     string   `json:"path" jsonschema_description:"Where the session stands"`
	Triggers []string `json:"triggers" jsonschema_description:"Command names available there"`
	Usage    []string `json:"usage" jsonschema_description:"The same commands as a user types them"`
}

// GraphArgs select a machine diagram.
type GraphArgs struct {
	Machine string `json:"machine"`
	Format  string `json:"format"`
}

// Server wraps the bot and exposes it as an MCP Server.
type Server struct {
	sessions  Sessions
	bot       ports.Bot
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, bot ports.Bot, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		bot:      bot,
		logger:   logging.NewNop(),
		mcpServer: server.NewMCPServer("duzhibot-mcp", strings.TrimSpace(duzhibot.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mcp")
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a chat message to a session, as the LINE user would."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session (LINE user id)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The message text, e.g. \"/register alice\"")),
		mcp.WithOutputSchema[SendMessageResult](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the persisted state of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session (LINE user id)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOutputSchema[domain.State](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("list_commands",
		mcp.WithDescription("List the commands available to a session. A session that never spoke starts in the world's initial state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session (LINE user id)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOutputSchema[CommandsResult](),
	), mcp.NewStructuredToolHandler(s.handleListCommands))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a machine definition for introspection."),
		mcp.WithString("machine", mcp.Description("world, lexer or parser (default world)")),
		mcp.WithString("format", mcp.Description("json or mermaid (default json)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), mcp.NewTypedToolHandler(s.handleGetGraph))
}

func (s *Server) handleSendMessage(ctx context.Context, _ mcp.CallToolRequest, args SendMessageArgs) (SendMessageResult, error) {
	if args.SessionID == "" {
		return SendMessageResult{}, errors.New("session_id is required")
	}
	prev, err := s.sessions.Load(ctx, args.SessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return SendMessageResult{}, fmt.Errorf("load session: %w", err)
	}

	replies := &domain.Replies{}
	next, accepted, err := s.sessions.Handle(ctx, args.SessionID, args.Text, replies.Add)
	if err != nil {
		s.logger.Warn("send_message failed", "session_id", args.SessionID, "error", err)
		return SendMessageResult{}, err
	}
	return SendMessageResult{
		State:    next,
		Accepted: accepted,
		Replies:  replies.Messages,
		Diff:     domain.Diff(prev, next),
	}, nil
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (domain.State, error) {
	state, err := s.sessions.Load(ctx, args.SessionID)
	if err != nil {
		return domain.State{}, err
	}
	return *state, nil
}

func (s *Server) handleListCommands(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (CommandsResult, error) {
	state, err := s.sessions.Load(ctx, args.SessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		state = s.bot.NewState(args.SessionID)
	case err != nil:
		return CommandsResult{}, err
	}
	return CommandsResult{
		Path:     state.Path,
		Triggers: s.bot.Triggers(state.Path),
		Usage:    s.bot.Usage(state.Path),
	}, nil
}

func (s *Server) handleGetGraph(_ context.Context, _ mcp.CallToolRequest, args GraphArgs) (*mcp.CallToolResult, error) {
	text, err := s.render(args.Machine, args.Format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) render(machine, format string) (string, error) {
	g, err := s.bot.Graph(machine)
	if err != nil {
		return "", err
	}
	switch format {
	case "", "json":
		b, err := json.Marshal(g)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "mermaid":
		return graph.Mermaid(g, nil), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(GraphURIPrefix+"{machine}", "Machine Definition",
		mcp.WithTemplateDescription("The world, lexer or parser machine as JSON"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		machine := strings.TrimPrefix(request.Params.URI, GraphURIPrefix)
		text, err := s.render(machine, "json")
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	})
}
