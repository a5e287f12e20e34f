package domain

// MessageType is the kind of a reply.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message is one reply sent back to the user.
type Message struct {
	Type MessageType `json:"type"`
	Text string      `json:"text,omitempty"`
	// ImageURL is the original content URL of an image message.
	ImageURL string `json:"image_url,omitempty"`
	// QuickReplies are suggested inputs shown as buttons where the channel supports them.
	QuickReplies []string `json:"quick_replies,omitempty"`
}

// Text builds a text message.
func Text(text string, quickReplies ...string) Message {
	return Message{Type: MessageText, Text: text, QuickReplies: quickReplies}
}

// Image builds an image message.
func Image(url string) Message {
	return Message{Type: MessageImage, ImageURL: url}
}

// ReplyFunc collects replies while a command runs.
type ReplyFunc func(msgs ...Message)

// Replies is a ReplyFunc target that keeps every message.
type Replies struct {
	Messages []Message
}

// Add appends msgs. It has the ReplyFunc signature.
func (r *Replies) Add(msgs ...Message) {
	r.Messages = append(r.Messages, msgs...)
}

// Last returns at most n trailing messages.
func (r *Replies) Last(n int) []Message {
	if len(r.Messages) <= n {
		return r.Messages
	}
	return r.Messages[len(r.Messages)-n:]
}
