package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/duzhibot"
	"github.com/aretw0/duzhibot/internal/presentation/graph"
	"github.com/aretw0/duzhibot/pkg/lexer"
)

// Graph formats.
const (
	FormatJSON    = "json"
	FormatMermaid = "mermaid"
)

// RenderGraph exports one machine of st.Bot. A sessionID overlays that session's trail on a
// mermaid world diagram.
func RenderGraph(ctx context.Context, st *Stack, machine, format, sessionID string) (string, error) {
	g, err := st.Bot.Graph(machine)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatJSON, "":
		b, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	case FormatMermaid:
		var overlay *graph.Overlay
		if sessionID != "" && (machine == duzhibot.MachineWorld || machine == "") {
			state, err := st.Manager.Load(ctx, sessionID)
			if err != nil {
				return "", fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			overlay = &graph.Overlay{Visited: state.History, Current: state.Path}
		}
		return graph.Mermaid(g, overlay), nil
	}
	return "", fmt.Errorf("unknown format %q, supported: %s, %s", format, FormatJSON, FormatMermaid)
}

// Validate checks every machine of bot and reports to w.
func Validate(bot *duzhibot.Bot, w io.Writer) error {
	if err := bot.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(w, "All machines are valid! ✅")
	return nil
}

// TokenView is one lexed token as printed by Explain.
type TokenView struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

// Explanation shows how a message is read.
type Explanation struct {
	Text    string            `json:"text"`
	Tokens  []TokenView       `json:"tokens"`
	Parsed  bool              `json:"parsed"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Kwargs  map[string]string `json:"kwargs,omitempty"`
	LexErr  string            `json:"lex_error,omitempty"`
}

// Explain lexes and parses text and writes the result to w as JSON.
func Explain(ctx context.Context, bot *duzhibot.Bot, text string, w io.Writer) error {
	out := Explanation{Text: text, Tokens: []TokenView{}}
	toks, err := lexer.Tokens(text)
	if err != nil {
		out.LexErr = err.Error()
	}
	for _, p := range toks {
		v, _ := p.Token.TriggerValue()
		out.Tokens = append(out.Tokens, TokenView{Index: p.Index, Kind: p.Token.Kind.String(), Value: v})
	}
	res, ok := bot.Parse(ctx, text)
	out.Parsed = ok
	out.Command, out.Args, out.Kwargs = res.Command, res.Args, res.Kwargs

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ListSessions prints the stored session ids.
func ListSessions(ctx context.Context, st *Stack, w io.Writer) error {
	ids, err := st.Manager.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	fmt.Fprintln(w, "Active Sessions:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// InspectSession prints one session as indented JSON.
func InspectSession(ctx context.Context, st *Stack, sessionID string, w io.Writer) error {
	state, err := st.Manager.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSessions deletes every id, reporting each one. It fails if any delete did.
func RemoveSessions(ctx context.Context, st *Stack, ids []string, w io.Writer) error {
	failed := 0
	for _, id := range ids {
		if err := st.Manager.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions not removed", failed, len(ids))
	}
	return nil
}
