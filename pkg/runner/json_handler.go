package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/duzhibot/pkg/domain"
)

// JSONOutput is one line written by a JSONHandler.
type JSONOutput struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages,omitempty"`
	Text     string           `json:"text,omitempty"`
}

// JSONInput is the object form of an input line. A bare JSON string or raw text is accepted too.
type JSONInput struct {
	Text string `json:"text"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(_ context.Context, msgs []domain.Message) error {
	return h.Encoder.Encode(JSONOutput{Type: "reply", Messages: msgs})
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSpace(line)

	var text string
	var obj JSONInput
	switch {
	case json.Unmarshal([]byte(line), &text) == nil:
	case json.Unmarshal([]byte(line), &obj) == nil:
		text = obj.Text
	default:
		text = line
	}
	return SanitizeInput(text)
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.Encoder.Encode(JSONOutput{Type: "system", Text: msg})
}
