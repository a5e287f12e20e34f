package parser

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/duzhibot/pkg/hsm"
	"github.com/aretw0/duzhibot/pkg/lexer"
)

// Rule maps a word pattern to a command. Pattern words are literals, "$" for a positional
// argument or "$name" for a keyword argument, e.g. "go to $" or "register $nick".
type Rule struct {
	Pattern string
	Command string
}

// DefaultRules is the command set of the game.
var DefaultRules = []Rule{
	{"go to $", "advance"},
	{"go back", "go_back"},
	{"go north", "go_north"},
	{"go south", "go_south"},
	{"go east", "go_east"},
	{"go west", "go_west"},
	{"register $nick", "register"},
	{"hello $", "hello"},
	{"sit", "sit"},
	{"stand", "stand"},
	{"open $", "open"},
	{"close $", "close"},
	{"switch $", "switch"},
	{"input $", "input"},
	{"check body temperature $", "check_body_temperature"},
	{"circle", "circle"},
	{"triangle", "triangle"},
	{"square", "square"},
	{"yes", "yes"},
	{"no", "no"},
	{"plugh", "plugh"},
	{"kill", "kill"},
	{"force kill", "force_kill"},
	{"resuscitate", "resuscitate"},
	{"help", "help"},
}

// ErrInvalidRule is returned for empty or conflicting rules.
var ErrInvalidRule = errors.New("invalid grammar rule")

// keywordKinds are the token kinds a literal word may arrive as.
var keywordKinds = []lexer.Kind{lexer.Word, lexer.Cmd}

// argKinds are the token kinds accepted as an argument.
var argKinds = []lexer.Kind{lexer.Str, lexer.Word, lexer.Quoted}

type gnode struct {
	name       string
	path       string
	literals   []*gnode
	arg        *gnode
	keyword    string
	positional bool
	command    string
}

func (n *gnode) literal(word string) *gnode {
	for _, c := range n.literals {
		if c.name == word {
			return c
		}
	}
	return nil
}

// defined returns the triggers n binds for its own children.
func (n *gnode) defined() []string {
	var out []string
	for _, c := range n.literals {
		for _, k := range keywordKinds {
			out = append(out, keywordTrigger(k, c.name))
		}
	}
	if n.arg != nil {
		for _, k := range argKinds {
			out = append(out, k.String())
		}
	}
	return out
}

func keywordTrigger(k lexer.Kind, word string) string {
	return k.String() + "_" + word
}

func buildGrammar(rules []Rule) (*gnode, error) {
	root := &gnode{name: StartState, path: StartState}
	for _, r := range rules {
		words := strings.Fields(r.Pattern)
		if len(words) == 0 || r.Command == "" {
			return nil, fmt.Errorf("%w: %q -> %q", ErrInvalidRule, r.Pattern, r.Command)
		}
		cur := root
		positional := 0
		for _, w := range words {
			if !strings.HasPrefix(w, "$") {
				w = strings.ToLower(w)
				if strings.ContainsAny(w, hsm.Separator+hsm.Wildcard+hsm.Reflexive) {
					return nil, fmt.Errorf("%w: reserved character in %q", ErrInvalidRule, r.Pattern)
				}
				next := cur.literal(w)
				if next == nil {
					next = &gnode{name: w, path: hsm.Join(cur.path, w)}
					cur.literals = append(cur.literals, next)
				}
				cur = next
				continue
			}

			kw := strings.TrimPrefix(w, "$")
			name := fmt.Sprintf("arg%d", positional)
			if kw != "" {
				name = "kw_" + kw
			} else {
				positional++
			}
			if cur.arg == nil {
				cur.arg = &gnode{name: name, path: hsm.Join(cur.path, name), keyword: kw, positional: kw == ""}
			} else if cur.arg.name != name {
				return nil, fmt.Errorf("%w: %q conflicts with argument %s at %s", ErrInvalidRule, r.Pattern, cur.arg.name, cur.path)
			}
			cur = cur.arg
		}
		if cur.command != "" && cur.command != r.Command {
			return nil, fmt.Errorf("%w: %q is both %s and %s", ErrInvalidRule, r.Pattern, cur.command, r.Command)
		}
		cur.command = r.Command
	}
	return root, nil
}

func (n *gnode) children() []*gnode {
	out := slices.Clone(n.literals)
	if n.arg != nil {
		out = append(out, n.arg)
	}
	return out
}

// states turns the grammar into a state tree. Every transition is declared on the root with
// canonical paths, which lets shadows point at the reject sink.
func (g *gnode) states(commands map[string]string) hsm.State[*Result] {
	root := hsm.State[*Result]{Name: "parser", Initial: StartState}

	var build func(n *gnode, inherited []string) hsm.State[*Result]
	build = func(n *gnode, inherited []string) hsm.State[*Result] {
		s := hsm.State[*Result]{Name: n.name}
		if n.command != "" {
			s.Tags = []string{AcceptedTag}
			commands[n.path] = n.command
		}
		switch {
		case n.keyword != "":
			kw := n.keyword
			s.OnEnter = []hsm.Callback[*Result]{hsm.NewCallback("set_kwarg_"+kw, func(ev *hsm.Event[*Result]) {
				if ev.Model.Kwargs == nil {
					ev.Model.Kwargs = make(map[string]string)
				}
				ev.Model.Kwargs[kw] = ev.Arg(0)
			})}
		case n.positional:
			s.OnEnter = []hsm.Callback[*Result]{hsm.NewCallback("get_arg", func(ev *hsm.Event[*Result]) {
				ev.Model.Args = append(ev.Model.Args, ev.Arg(0))
			})}
		}

		for _, c := range n.literals {
			for _, k := range keywordKinds {
				root.Transitions = append(root.Transitions, hsm.Transition[*Result]{
					Trigger: keywordTrigger(k, c.name),
					Sources: []string{n.path},
					Dest:    c.path,
				})
			}
		}
		if n.arg != nil {
			for _, k := range argKinds {
				root.Transitions = append(root.Transitions, hsm.Transition[*Result]{
					Trigger: k.String(),
					Sources: []string{n.path},
					Dest:    n.arg.path,
				})
			}
		}

		own := n.defined()
		for _, trig := range inherited {
			if slices.Contains(own, trig) {
				continue
			}
			dest := RejectState
			if n.arg != nil && strings.HasPrefix(trig, lexer.Word.String()+"_") {
				dest = n.arg.path
			}
			root.Transitions = append(root.Transitions, hsm.Transition[*Result]{
				Trigger: trig,
				Sources: []string{n.path},
				Dest:    dest,
			})
		}

		below := slices.Concat(inherited, own)
		slices.Sort(below)
		below = slices.Compact(below)
		for _, c := range n.children() {
			s.Children = append(s.Children, build(c, below))
		}
		return s
	}

	start := build(g, nil)
	root.Children = []hsm.State[*Result]{start, hsm.Leaf[*Result](RejectState)}
	return root
}
