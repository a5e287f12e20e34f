package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// DefaultMaxInputSize is the byte limit of one message: LINE's 5000 characters at the widest
	// UTF-8 encoding.
	DefaultMaxInputSize = 5000 * utf8.UTFMax
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "DUZHIBOT_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput prepares a chat message for the lexer. It rejects oversized or invalid UTF-8
// input, composes it to NFC so "é" typed as e plus an accent matches a word, turns CRLF into LF
// and strips control characters other than newline and tab.
func SanitizeInput(input string) (string, error) {
	if limit := maxInputSize(); len(input) > limit {
		// Rejected, not truncated: a cut message could parse as a different command.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	input = norm.NFC.String(input)
	input = strings.ReplaceAll(input, "\r\n", "\n")

	if !strings.ContainsFunc(input, unsafeControl) {
		return input, nil
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
