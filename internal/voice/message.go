package voice

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is one line of a voice conversation, whatever shape the agent
// callback used to deliver it.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type rawMessage struct {
	Message *string `json:"message"`
	Text    *string `json:"text"`
	Source  *string `json:"source"`
}

// DecodeMessage normalizes an agent callback payload. The text comes from
// "message", falling back to "text"; "source" is "ai" (the default) or
// "user". Anything else is ErrUnrecognizedMessage.
func DecodeMessage(data []byte, now time.Time) (Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
	}

	var text string
	switch {
	case raw.Message != nil && strings.TrimSpace(*raw.Message) != "":
		text = *raw.Message
	case raw.Text != nil:
		text = *raw.Text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("%w: no message text", ErrUnrecognizedMessage)
	}

	role := RoleAssistant
	if raw.Source != nil {
		switch strings.ToLower(strings.TrimSpace(*raw.Source)) {
		case "ai", "":
		case "user":
			role = RoleUser
		default:
			return Message{}, fmt.Errorf("%w: unknown source %q", ErrUnrecognizedMessage, *raw.Source)
		}
	}

	return Message{Role: role, Text: text, Timestamp: now}, nil
}
