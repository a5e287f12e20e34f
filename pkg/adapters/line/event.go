package line

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// ErrInvalidPayload is returned for webhook bodies that are not LINE event lists.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Event is one decoded webhook event. The embedded value is one of the SDK event types, e.g.
// webhook.MessageEvent or webhook.FollowEvent.
type Event struct {
	webhook.EventInterface
}

// Kind names the event type for logs.
func (e Event) Kind() string {
	return fmt.Sprintf("%T", e.EventInterface)
}

// ReplyToken returns the token a reply to e must carry, if e has one.
func (e Event) ReplyToken() string {
	switch ev := e.EventInterface.(type) {
	case webhook.MessageEvent:
		return ev.ReplyToken
	case webhook.FollowEvent:
		return ev.ReplyToken
	case webhook.PostbackEvent:
		return ev.ReplyToken
	}
	return ""
}

// UserText returns the text of a text message sent by a user in a one-to-one chat.
func (e Event) UserText() (userID, text string, ok bool) {
	ev, isMsg := e.EventInterface.(webhook.MessageEvent)
	if !isMsg {
		return "", "", false
	}
	src, isUser := ev.Source.(webhook.UserSource)
	if !isUser || src.UserId == "" {
		return "", "", false
	}
	msg, isText := ev.Message.(webhook.TextMessageContent)
	if !isText {
		return "", "", false
	}
	return src.UserId, msg.Text, true
}

type payload struct {
	Destination string            `json:"destination"`
	Events      []json.RawMessage `json:"events"`
}

// ParseEvents decodes a webhook body. Event types the SDK does not know decode as
// webhook.UnknownEvent.
func ParseEvents(body []byte) ([]Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	events := make([]Event, 0, len(p.Events))
	for i, raw := range p.Events {
		ev, err := webhook.UnmarshalEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidPayload, i, err)
		}
		events = append(events, Event{ev})
	}
	return events, nil
}
