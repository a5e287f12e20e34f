// Package parser turns chat messages into commands.
//
// Tokens from package lexer drive a state machine built from a small word grammar. For each
// token the parser first tries the value-qualified trigger ("TWord_go") and then the bare kind
// ("TWord"); a token neither is available for ends the parse. The text is a command only when
// the machine stops on a state tagged as accepted.
package parser

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/duzhibot/pkg/hsm"
	"github.com/aretw0/duzhibot/pkg/lexer"
)

const (
	// StartState is the grammar root every parse begins in.
	StartState = "s"
	// RejectState is the sink for tokens that would otherwise be inherited from an ancestor.
	RejectState = "reject"
	// AcceptedTag marks states that complete a command.
	AcceptedTag = "accepted"
	// ResetTrigger returns a machine to StartState.
	ResetTrigger = "reset"
)

// Result is a parsed command.
type Result struct {
	Command string
	Args    []string
	Kwargs  map[string]string
}

// Parser holds a compiled grammar. It is safe for concurrent use; every Parse runs its own
// machine.
type Parser struct {
	table    *hsm.Table[*Result]
	rules    []Rule
	commands map[string]string
}

// New compiles rules, or DefaultRules when none are given.
func New(rules ...Rule) (*Parser, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	g, err := buildGrammar(rules)
	if err != nil {
		return nil, err
	}

	p := &Parser{rules: rules, commands: make(map[string]string)}
	root := g.states(p.commands)
	hsm.Ignore(&root, []string{lexer.Newline.String(), lexer.Indent.String(), lexer.Space.String()}, hsm.Internal)
	hsm.AddResetters(&root, []string{ResetTrigger}, StartState, nil)

	if p.table, err = hsm.Compile(root); err != nil {
		return nil, fmt.Errorf("compile grammar: %w", err)
	}
	return p, nil
}

// Table returns the compiled grammar machine.
func (p *Parser) Table() *hsm.Table[*Result] { return p.table }

// Parse returns the command text denotes, if any.
func (p *Parser) Parse(ctx context.Context, text string) (Result, bool) {
	res := &Result{}
	m, err := p.table.NewMachine(res, "")
	if err != nil {
		return Result{}, false
	}

	s := lexer.NewScanner(text)
	for s.Scan() {
		if !p.step(ctx, m, s.Token()) {
			return Result{}, false
		}
	}
	if s.Err() != nil || !m.HasTag(AcceptedTag) {
		return Result{}, false
	}
	res.Command = p.commands[m.State()]
	return *res, true
}

func (p *Parser) step(ctx context.Context, m *hsm.Machine[*Result], tok lexer.Token) bool {
	kind := tok.Kind.String()
	val, hasValue := tok.TriggerValue()

	triggers := []string{kind}
	if hasValue {
		triggers = []string{kind + "_" + strings.ToLower(val), kind}
	}
	for _, trig := range triggers {
		if !p.table.Has(m.State(), trig) {
			continue
		}
		var args []string
		if hasValue {
			args = []string{val}
		}
		ok, err := m.Trigger(ctx, trig, args, nil)
		return ok && err == nil
	}
	return false
}

// Commands lists the command names the grammar can produce, sorted.
func (p *Parser) Commands() []string {
	var out []string
	for _, r := range p.rules {
		out = append(out, r.Command)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Usage renders the patterns of command for help text, e.g. "go to <arg>".
func (p *Parser) Usage(command string) []string {
	var out []string
	for _, r := range p.rules {
		if r.Command != command {
			continue
		}
		words := strings.Fields(r.Pattern)
		for i, w := range words {
			if name, ok := strings.CutPrefix(w, "$"); ok {
				if name == "" {
					name = "arg"
				}
				words[i] = "<" + name + ">"
			}
		}
		out = append(out, strings.Join(words, " "))
	}
	return out
}
