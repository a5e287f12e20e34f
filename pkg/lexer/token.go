package lexer

import (
	"fmt"
	"strings"
)

// Kind identifies a token class. The zero value is not a valid kind.
type Kind int

const (
	_ Kind = iota
	Str
	Cmd
	Quoted
	Word
	Newline
	Indent
	Space
)

var kindNames = [...]string{
	Str:     "TStr",
	Cmd:     "TCmd",
	Quoted:  "TQuoted",
	Word:    "TWord",
	Newline: "TNewline",
	Indent:  "TIndent",
	Space:   "TSpace",
}

// Kinds lists every kind in trial order.
func Kinds() []Kind {
	return []Kind{Str, Cmd, Quoted, Word, Newline, Indent, Space}
}

// String returns the trigger name of the kind, e.g. "TWord".
func (k Kind) String() string {
	if k <= 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Run is one stretch of a repeated whitespace character.
type Run struct {
	Char  rune
	Count int
}

// Token is a lexed unit. Which fields are set depends on Kind.
type Token struct {
	Kind Kind
	// Value is the string body for Str, the command name for Cmd, the quoted text for Quoted
	// and the case-folded word for Word.
	Value string
	// Suffix holds the word characters right after a closing double quote.
	Suffix string
	// Runs holds the run-length encoded indentation.
	Runs []Run
}

// TriggerValue returns the value used to build a value-qualified trigger such as "TWord_go".
// Newline and Space carry none.
func (t Token) TriggerValue() (string, bool) {
	switch t.Kind {
	case Str, Cmd, Quoted, Word:
		return t.Value, true
	case Indent:
		return IndentRepr(t.Runs), true
	default:
		return "", false
	}
}

func (t Token) String() string {
	switch t.Kind {
	case Indent:
		return fmt.Sprintf("%s(%s)", t.Kind, IndentRepr(t.Runs))
	case Str:
		if t.Suffix != "" {
			return fmt.Sprintf("%s(%q, %q)", t.Kind, t.Value, t.Suffix)
		}
		return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
	case Newline, Space:
		return t.Kind.String()
	default:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
	}
}

// IndentRepr renders runs as "x20n3_x9n1": the hex code point, then the count.
func IndentRepr(runs []Run) string {
	parts := make([]string, len(runs))
	for i, r := range runs {
		parts[i] = fmt.Sprintf("x%xn%d", r.Char, r.Count)
	}
	return strings.Join(parts, "_")
}

func runLength(s string) []Run {
	var runs []Run
	for _, c := range s {
		if n := len(runs); n > 0 && runs[n-1].Char == c {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, Run{Char: c, Count: 1})
	}
	return runs
}
