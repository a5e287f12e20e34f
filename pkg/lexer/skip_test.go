package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanner_SkipsUnmatched(t *testing.T) {
	s := NewScanner("a é\nb")
	s.patterns = patterns[3:4] // words only

	var got []Positioned
	for s.Scan() {
		got = append(got, Positioned{Index: s.Index(), Token: s.Token()})
	}
	assert.Equal(t, []Positioned{
		{Index: 0, Token: Token{Kind: Word, Value: "a"}},
		{Index: 2, Token: Token{Kind: Word, Value: "é"}},
		{Index: 5, Token: Token{Kind: Word, Value: "b"}},
	}, got)
}
