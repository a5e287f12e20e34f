package lexer_test

import (
	"testing"

	"github.com/aretw0/duzhibot/pkg/lexer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(i int, v string) lexer.Positioned {
	return lexer.Positioned{Index: i, Token: lexer.Token{Kind: lexer.Word, Value: v}}
}

func space(i int) lexer.Positioned {
	return lexer.Positioned{Index: i, Token: lexer.Token{Kind: lexer.Space}}
}

func newline(i int) lexer.Positioned {
	return lexer.Positioned{Index: i, Token: lexer.Token{Kind: lexer.Newline}}
}

func indent(i int, runs ...lexer.Run) lexer.Positioned {
	return lexer.Positioned{Index: i, Token: lexer.Token{Kind: lexer.Indent, Runs: runs}}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []lexer.Positioned
	}{
		{
			name: "words and spaces",
			text: "Go to ROOM",
			want: []lexer.Positioned{word(0, "go"), space(2), word(3, "to"), space(5), word(6, "room")},
		},
		{
			name: "slash command",
			text: "/go to room",
			want: []lexer.Positioned{
				{Index: 0, Token: lexer.Token{Kind: lexer.Cmd, Value: "go"}},
				space(3), word(4, "to"), space(6), word(7, "room"),
			},
		},
		{
			name: "indentation only",
			text: "   \n",
			want: []lexer.Positioned{indent(0, lexer.Run{Char: ' ', Count: 3}), newline(3)},
		},
		{
			name: "indent after newline, space mid-line",
			text: "a \t b\n  \tc",
			want: []lexer.Positioned{
				word(0, "a"), space(1), word(4, "b"), newline(5),
				indent(6, lexer.Run{Char: ' ', Count: 2}, lexer.Run{Char: '\t', Count: 1}),
				word(9, "c"),
			},
		},
		{
			name: "string with suffix spanning lines",
			text: `"two` + "\n" + `lines"x`,
			want: []lexer.Positioned{
				{Index: 0, Token: lexer.Token{Kind: lexer.Str, Value: "two\nlines", Suffix: "x"}},
			},
		},
		{
			name: "escaped quote stays in string",
			text: `"say \"hi\""`,
			want: []lexer.Positioned{
				{Index: 0, Token: lexer.Token{Kind: lexer.Str, Value: `say \"hi\"`}},
			},
		},
		{
			name: "quoted",
			text: "'Lobby' 'hall",
			want: []lexer.Positioned{
				{Index: 0, Token: lexer.Token{Kind: lexer.Quoted, Value: "Lobby"}},
				space(7),
				{Index: 8, Token: lexer.Token{Kind: lexer.Quoted, Value: "hall"}},
			},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lexer.Tokens(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokens(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestTriggerValue(t *testing.T) {
	tests := []struct {
		tok   lexer.Token
		want  string
		valid bool
	}{
		{lexer.Token{Kind: lexer.Word, Value: "go"}, "go", true},
		{lexer.Token{Kind: lexer.Cmd, Value: "help"}, "help", true},
		{lexer.Token{Kind: lexer.Indent, Runs: []lexer.Run{{Char: ' ', Count: 3}}}, "x20n3", true},
		{lexer.Token{Kind: lexer.Indent, Runs: []lexer.Run{{Char: ' ', Count: 2}, {Char: '\t', Count: 1}}}, "x20n2_x9n1", true},
		{lexer.Token{Kind: lexer.Space}, "", false},
		{lexer.Token{Kind: lexer.Newline}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.tok.String(), func(t *testing.T) {
			got, ok := tt.tok.TriggerValue()
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanner_StateTracksLineStart(t *testing.T) {
	s := lexer.NewScanner("a\n")
	assert.Equal(t, lexer.StateBeg, s.State())

	require.True(t, s.Scan())
	assert.Equal(t, lexer.StateMid, s.State())

	require.True(t, s.Scan())
	assert.Equal(t, lexer.Newline, s.Token().Kind)
	assert.Equal(t, lexer.StateBeg, s.State())

	assert.False(t, s.Scan())
	assert.False(t, s.Scan(), "a drained scanner stays drained")
	assert.NoError(t, s.Err())
}

func TestScanner_Reset(t *testing.T) {
	s := lexer.NewScanner("word")
	require.True(t, s.Scan())
	require.Equal(t, lexer.StateMid, s.State())

	s.Reset("  x")
	assert.Equal(t, lexer.StateBeg, s.State())
	require.True(t, s.Scan())
	assert.Equal(t, lexer.Indent, s.Token().Kind)
	assert.Equal(t, 0, s.Index())
}

func TestDefinition_Validates(t *testing.T) {
	table, err := lexer.Table()
	require.NoError(t, err)
	assert.NoError(t, table.Validate())
	assert.Equal(t, []string{"TCmd", "TIndent", "TNewline", "TQuoted", "TSpace", "TStr", "TWord", "reset"}, table.Triggers(lexer.StateMid))
}

func TestTokens_Idempotent(t *testing.T) {
	inputs := []string{
		"/go to room",
		"  go\tback\r\n",
		`check body temperature "36.6"°C 'Door`,
		"中文 命令\n\n  register 阿明",
		"",
	}
	for _, text := range inputs {
		first, err := lexer.Tokens(text)
		require.NoError(t, err, text)
		second, err := lexer.Tokens(text)
		require.NoError(t, err, text)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Tokens(%q) changed between runs (-first +second):\n%s", text, diff)
		}
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "TWord", lexer.Word.String())
	assert.Equal(t, "Kind(0)", lexer.Kind(0).String())
}
