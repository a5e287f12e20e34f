// Package lexer splits chat messages into positioned tokens.
//
// Scanning is driven by a two-state machine built with package hsm: "beg" at the start of a
// line and "mid" elsewhere. Every token kind is a trigger on it, and the current state decides
// whether leading whitespace is an Indent or a Space.
package lexer

import (
	"context"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/aretw0/duzhibot/pkg/hsm"
	"golang.org/x/text/cases"
)

// Machine states.
const (
	StateBeg = "beg"
	StateMid = "mid"
)

// ResetTrigger sends the machine back to StateBeg from anywhere.
const ResetTrigger = "reset"

type pattern struct {
	kind Kind
	// when limits the pattern to one machine state; empty means any.
	when  string
	re    *regexp.Regexp
	build func(s *Scanner, groups []string) Token
}

var patterns = []pattern{
	{
		kind: Str,
		re:   regexp.MustCompile(`(?s)^"((?:\\.|[^"\\])+)"([\p{L}\p{N}_]*)`),
		build: func(_ *Scanner, g []string) Token {
			return Token{Kind: Str, Value: g[1], Suffix: g[2]}
		},
	},
	{
		kind: Cmd,
		re:   regexp.MustCompile(`^/([\p{L}\p{N}_$]+[?!]?)`),
		build: func(_ *Scanner, g []string) Token {
			return Token{Kind: Cmd, Value: g[1]}
		},
	},
	{
		kind: Quoted,
		re:   regexp.MustCompile(`^'([^'\s]+)'?`),
		build: func(_ *Scanner, g []string) Token {
			return Token{Kind: Quoted, Value: g[1]}
		},
	},
	{
		kind: Word,
		re:   regexp.MustCompile(`^(\S+)`),
		build: func(s *Scanner, g []string) Token {
			return Token{Kind: Word, Value: s.fold.String(g[1])}
		},
	},
	{
		kind: Newline,
		re:   regexp.MustCompile(`^\r?\n`),
		build: func(_ *Scanner, _ []string) Token {
			return Token{Kind: Newline}
		},
	},
	{
		kind: Indent,
		when: StateBeg,
		re:   regexp.MustCompile(`^([^\S\n]+)`),
		build: func(_ *Scanner, g []string) Token {
			return Token{Kind: Indent, Runs: runLength(g[1])}
		},
	},
	{
		kind: Space,
		when: StateMid,
		re:   regexp.MustCompile(`^[^\S\n]+`),
		build: func(_ *Scanner, _ []string) Token {
			return Token{Kind: Space}
		},
	},
}

// Definition returns the lexer state machine definition.
func Definition() hsm.State[struct{}] {
	root := hsm.State[struct{}]{
		Name:     "lexer",
		Initial:  StateBeg,
		Children: hsm.Leaves[struct{}](StateBeg, StateMid),
	}
	for _, k := range Kinds() {
		dest := StateMid
		if k == Newline {
			dest = StateBeg
		}
		root.Transitions = append(root.Transitions, hsm.Transition[struct{}]{
			Trigger: k.String(),
			Sources: []string{hsm.Wildcard},
			Dest:    dest,
		})
	}
	hsm.AddResetters(&root, []string{ResetTrigger}, StateBeg, nil)
	return root
}

// Table returns the compiled lexer machine, shared by every Scanner.
var Table = sync.OnceValues(func() (*hsm.Table[struct{}], error) {
	return hsm.Compile(Definition())
})

// Positioned is a token with its byte offset in the input.
type Positioned struct {
	Index int
	Token Token
}

// Scanner reads tokens lazily, in the manner of bufio.Scanner. It does not rewind; use Reset
// to scan another text.
type Scanner struct {
	text     string
	pos      int
	idx      int
	tok      Token
	machine  *hsm.Machine[struct{}]
	fold     cases.Caser
	patterns []pattern
	err      error
}

// NewScanner returns a Scanner over text.
func NewScanner(text string) *Scanner {
	s := &Scanner{text: text, fold: cases.Fold(), patterns: patterns}
	table, err := Table()
	if err != nil {
		s.err = err
		return s
	}
	s.machine, s.err = table.NewMachine(struct{}{}, "")
	return s
}

// Scan advances to the next token. Characters no pattern accepts are skipped.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.pos < len(s.text) {
		tok, n, ok := s.match()
		if !ok {
			_, size := utf8.DecodeRuneInString(s.text[s.pos:])
			s.pos += size
			continue
		}
		if _, err := s.machine.Trigger(context.Background(), tok.Kind.String(), nil, nil); err != nil {
			s.err = err
			return false
		}
		s.idx, s.tok = s.pos, tok
		s.pos += n
		return true
	}
	return false
}

func (s *Scanner) match() (Token, int, bool) {
	rest := s.text[s.pos:]
	for _, p := range s.patterns {
		if p.when != "" && !s.machine.Is(p.when) {
			continue
		}
		loc := p.re.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = rest[loc[2*i]:loc[2*i+1]]
			}
		}
		return p.build(s, groups), loc[1], true
	}
	return Token{}, 0, false
}

// Token returns the most recent token.
func (s *Scanner) Token() Token { return s.tok }

// Index returns the byte offset of the most recent token.
func (s *Scanner) Index() int { return s.idx }

// State returns the lexer machine state, StateBeg or StateMid.
func (s *Scanner) State() string {
	if s.machine == nil {
		return ""
	}
	return s.machine.State()
}

// Err returns the first error met while scanning.
func (s *Scanner) Err() error { return s.err }

// Reset prepares the Scanner for a new text and returns the machine to StateBeg.
func (s *Scanner) Reset(text string) {
	s.text, s.pos, s.idx, s.tok = text, 0, 0, Token{}
	if s.machine == nil || s.err != nil {
		return
	}
	if !s.machine.Is(StateBeg) {
		if _, err := s.machine.Trigger(context.Background(), ResetTrigger, nil, nil); err != nil {
			s.err = err
		}
	}
}

// Tokens lexes the whole text.
func Tokens(text string) ([]Positioned, error) {
	var out []Positioned
	s := NewScanner(text)
	for s.Scan() {
		out = append(out, Positioned{Index: s.Index(), Token: s.Token()})
	}
	return out, s.Err()
}
