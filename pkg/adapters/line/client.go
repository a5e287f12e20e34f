package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/aretw0/duzhibot/pkg/ports"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	// MaxMessages is the number of messages one reply may carry.
	MaxMessages = 5
	// MaxQuickReplies is the number of quick reply buttons one message may carry.
	MaxQuickReplies = 13
	// maxLabel is the length limit of a quick reply label, in characters.
	maxLabel = 20
)

// ErrReplyFailed is returned when the API rejects a reply.
var ErrReplyFailed = errors.New("line reply failed")

// ClientOption configures the underlying Messaging API client.
type ClientOption = messaging_api.MessagingApiAPIOption

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(url string) ClientOption {
	return messaging_api.WithEndpoint(url)
}

// WithHTTPClient replaces the default client, which times out after 10 seconds.
func WithHTTPClient(hc *http.Client) ClientOption {
	return messaging_api.WithHTTPClient(hc)
}

// Client sends replies through the Messaging API.
type Client struct {
	token string
	opts  []ClientOption
}

var _ ports.ReplySender = (*Client)(nil)

// NewClient returns a Client authenticating with the channel access token. Options are checked
// here, so a bad base URL fails at startup rather than on the first reply.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		token: token,
		opts:  append([]ClientOption{WithHTTPClient(&http.Client{Timeout: 10 * time.Second})}, opts...),
	}
	if _, err := c.api(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// api returns a client bound to ctx. The SDK keeps the context on the client, so each reply
// gets its own.
func (c *Client) api(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	api, err := messaging_api.NewMessagingApiAPI(c.token, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging api client: %w", err)
	}
	return api.WithContext(ctx), nil
}

// Reply sends the trailing MaxMessages of msgs as the answer to replyToken.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > MaxMessages {
		msgs = msgs[len(msgs)-MaxMessages:]
	}
	req := &messaging_api.ReplyMessageRequest{ReplyToken: replyToken}
	for _, m := range msgs {
		req.Messages = append(req.Messages, convert(m))
	}

	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	if _, err := api.ReplyMessage(req); err != nil {
		return fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}
	return nil
}

func convert(m domain.Message) messaging_api.MessageInterface {
	qr := quickReply(m.QuickReplies)
	if m.Type == domain.MessageImage {
		return messaging_api.ImageMessage{
			OriginalContentUrl: m.ImageURL,
			PreviewImageUrl:    m.ImageURL,
			QuickReply:         qr,
		}
	}
	return messaging_api.TextMessage{Text: m.Text, QuickReply: qr}
}

func quickReply(texts []string) *messaging_api.QuickReply {
	if len(texts) == 0 {
		return nil
	}
	qr := &messaging_api.QuickReply{}
	for _, text := range texts {
		if len(qr.Items) == MaxQuickReplies {
			break
		}
		qr.Items = append(qr.Items, messaging_api.QuickReplyItem{
			Type:   "action",
			Action: messaging_api.MessageAction{Label: label(text), Text: text},
		})
	}
	return qr
}

func label(text string) string {
	r := []rune(text)
	if len(r) <= maxLabel {
		return text
	}
	return string(r[:maxLabel-1]) + "…"
}
