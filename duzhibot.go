package duzhibot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/hsm"
	"github.com/aretw0/duzhibot/pkg/lexer"
	"github.com/aretw0/duzhibot/pkg/parser"
	"github.com/aretw0/duzhibot/pkg/ports"
	"github.com/aretw0/duzhibot/pkg/runner"
	"github.com/aretw0/duzhibot/pkg/world"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// HelpCommand lists the commands available where the player stands.
const HelpCommand = "help"

// Machine names accepted by Graph.
const (
	MachineWorld  = "world"
	MachineLexer  = "lexer"
	MachineParser = "parser"
)

// Fallback texts.
const (
	NoSuchCommand = "No such command... use /help to see what you can do."
	helpHeader    = "Available commands:"
)

// maxQuickReplies is what LINE shows under one message.
const maxQuickReplies = 13

// ErrNilState is returned by Exec when no state is given.
var ErrNilState = errors.New("state is nil")

// Bot runs chat messages against the world. It is safe for concurrent use; sessions must be
// serialized by the caller.
type Bot struct {
	lexer  *hsm.Table[struct{}]
	parser *parser.Parser
	world  *hsm.Table[*world.Session]

	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	dice      world.Dice
	worldOpts world.Options
	imageURL  string
	rules     []parser.Rule
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithLogger sets a custom structured logger for the bot.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithRand sets the dice of the chair and the warp. Tests pass a seeded *rand.Rand.
func WithRand(d world.Dice) Option {
	return func(b *Bot) {
		b.dice = d
	}
}

// WithWorldOptions overrides the puzzle answers.
func WithWorldOptions(opts world.Options) Option {
	return func(b *Bot) {
		b.worldOpts = opts
	}
}

// WithImageURL sets the picture sent along with the unknown-command reply.
func WithImageURL(url string) Option {
	return func(b *Bot) {
		b.imageURL = url
	}
}

// WithRules replaces the parser grammar.
func WithRules(rules ...parser.Rule) Option {
	return func(b *Bot) {
		b.rules = rules
	}
}

// New compiles the lexer, parser and world.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{worldOpts: world.DefaultOptions()}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	b.logger = b.logger.With("component", "bot")

	var err error
	if b.lexer, err = lexer.Table(); err != nil {
		return nil, fmt.Errorf("compile lexer: %w", err)
	}
	if b.parser, err = parser.New(b.rules...); err != nil {
		return nil, err
	}
	if b.world, err = world.Table(); err != nil {
		return nil, fmt.Errorf("compile world: %w", err)
	}
	return b, nil
}

// NewState returns the state of a player who has never spoken.
func (b *Bot) NewState(sessionID string) *domain.State {
	return domain.NewState(sessionID, b.world.Initial())
}

// Exec runs one chat message. It reports whether text was a command the player could use
// where they stand; otherwise the player is told so and nothing moves. Oversized or invalid
// UTF-8 text is answered the same way. The input state is left untouched.
func (b *Bot) Exec(ctx context.Context, state *domain.State, text string, reply domain.ReplyFunc) (*domain.State, bool, error) {
	if state == nil {
		return nil, false, ErrNilState
	}
	if reply == nil {
		reply = func(...domain.Message) {}
	}
	logger := b.logger.With("session_id", state.SessionID)

	clean, unreadable := runner.SanitizeInput(text)
	if unreadable != nil {
		logger.Info("message not parsed", "error", unreadable, "size", len(text))
	}

	sess := world.NewSession(reply)
	sess.Logger = logger
	sess.Dice = b.dice
	sess.Options = b.worldOpts
	sess.Load(state.Data)

	m, err := b.world.NewMachine(sess, state.Path, hsm.WithHooks(b.machineHooks(state.SessionID, logger)))
	if err != nil {
		return nil, false, err
	}
	if m.State() != state.Path {
		logger.Warn("restored session at another path", "stored", state.Path, "path", m.State())
	}
	if _, err := m.Settle(ctx); err != nil {
		return nil, false, err
	}
	source := m.State()

	var (
		res    parser.Result
		parsed bool
	)
	if unreadable == nil {
		res, parsed = b.parser.Parse(ctx, clean)
	}
	accepted := false
	switch {
	case parsed && res.Command == HelpCommand:
		b.help(m.State(), reply)
		accepted = true
	case parsed && slices.Contains(m.Triggers(), res.Command):
		accepted, err = m.Trigger(ctx, res.Command, res.Args, res.Kwargs)
		if err != nil {
			return nil, false, err
		}
	}
	if !accepted {
		b.fallback(m.State(), clean, reply)
	}
	logger.Debug("exec", "text", clean, "command", res.Command, "accepted", accepted, "from", source, "to", m.State())

	next := state.Clone()
	next.Visit(m.State())
	next.Data = sess.Dump()
	next.UpdatedAt = time.Now().UTC()

	if b.hooks.OnCommand != nil {
		b.hooks.OnCommand(ctx, &domain.CommandEvent{
			EventBase: domain.EventBase{Timestamp: next.UpdatedAt, Type: domain.EventCommand, SessionID: state.SessionID},
			Text:      clean,
			Command:   res.Command,
			Source:    source,
			Dest:      next.Path,
			Accepted:  accepted,
		})
	}
	return next, accepted, nil
}

func (b *Bot) machineHooks(sessionID string, logger *slog.Logger) hsm.Hooks {
	event := func(t domain.EventType, path string) *domain.StateEvent {
		return &domain.StateEvent{
			EventBase: domain.EventBase{Timestamp: time.Now().UTC(), Type: t, SessionID: sessionID},
			Path:      path,
		}
	}
	h := hsm.Hooks{
		OnTransition: func(_ context.Context, st hsm.Step) {
			logger.Debug("transition", "trigger", st.Trigger, "source", st.Source, "dest", st.Dest, "kind", st.Kind)
		},
		OnRejected: func(_ context.Context, trigger, path string) {
			logger.Debug("guards refused", "trigger", trigger, "path", path)
		},
	}
	if b.hooks.OnStateEnter != nil {
		h.OnEnter = func(ctx context.Context, path string) {
			b.hooks.OnStateEnter(ctx, event(domain.EventStateEnter, path))
		}
	}
	if b.hooks.OnStateLeave != nil {
		h.OnExit = func(ctx context.Context, path string) {
			b.hooks.OnStateLeave(ctx, event(domain.EventStateLeave, path))
		}
	}
	return h
}

func (b *Bot) help(path string, reply domain.ReplyFunc) {
	usage := b.Usage(path)
	var quick []string
	for _, u := range usage {
		if !strings.Contains(u, "<") && len(quick) < maxQuickReplies {
			quick = append(quick, "/"+u)
		}
	}
	reply(domain.Text(helpHeader+"\n/"+strings.Join(usage, "\n/"), quick...))
}

func (b *Bot) fallback(path, text string, reply domain.ReplyFunc) {
	var msgs []domain.Message
	if b.imageURL != "" {
		msgs = append(msgs, domain.Image(b.imageURL))
	}
	msg := NoSuchCommand
	if s := suggest(text, b.Usage(path)); s != "" {
		msg += fmt.Sprintf("\nDid you mean \"/%s\"?", s)
	}
	msgs = append(msgs, domain.Text(msg, "/"+HelpCommand))
	reply(msgs...)
}

// suggest picks the usage line closest to text, or "" when nothing is close.
func suggest(text string, usage []string) string {
	text = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(text), "/"))
	if text == "" {
		return ""
	}
	if ranks := fuzzy.RankFindNormalizedFold(text, usage); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", len(text)/2+1
	for _, u := range usage {
		literal, _, _ := strings.Cut(u, " <")
		if d := fuzzy.LevenshteinDistance(text, literal); d < bestDist {
			best, bestDist = u, d
		}
	}
	return best
}

// Triggers lists the world commands available at path. Epsilon is not a command.
func (b *Bot) Triggers(path string) []string {
	return slices.DeleteFunc(b.world.Triggers(path), func(t string) bool { return t == hsm.Epsilon })
}

// Usage renders the commands available at path, help included, e.g. "go to <arg>".
func (b *Bot) Usage(path string) []string {
	var out []string
	for _, t := range append(b.Triggers(path), HelpCommand) {
		out = append(out, b.parser.Usage(t)...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Graph exports one of the bot's machines.
func (b *Bot) Graph(machine string) (hsm.Graph, error) {
	switch machine {
	case MachineWorld, "":
		return b.world.Graph(), nil
	case MachineLexer:
		return b.lexer.Graph(), nil
	case MachineParser:
		return b.parser.Table().Graph(), nil
	}
	return hsm.Graph{}, fmt.Errorf("%w: %q", domain.ErrUnknownMachine, machine)
}

// Validate checks all three machines for epsilon cycles, regions the engine could chain through
// forever. Structural faults such as unresolved paths are already rejected when compiling.
func (b *Bot) Validate() error {
	return errors.Join(
		wrap(MachineLexer, b.lexer.Validate()),
		wrap(MachineParser, b.parser.Table().Validate()),
		wrap(MachineWorld, b.world.Validate()),
	)
}

func wrap(machine string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", machine, err)
}

// Parse exposes the parser, for tools that explain how a message is read.
func (b *Bot) Parse(ctx context.Context, text string) (parser.Result, bool) {
	return b.parser.Parse(ctx, text)
}

var _ ports.Bot = (*Bot)(nil)
