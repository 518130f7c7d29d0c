package model

import (
	"fmt"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// wireAssistant is how the record store spells the assistant sender.
const wireAssistant = "ai"

// MarshalText writes the record store spelling of r.
func (r Role) MarshalText() ([]byte, error) {
	if r == RoleAssistant {
		return []byte(wireAssistant), nil
	}
	return []byte(r), nil
}

// UnmarshalText accepts both "ai" and "assistant" for the assistant sender.
func (r *Role) UnmarshalText(b []byte) error {
	switch v := string(b); v {
	case string(RoleUser):
		*r = RoleUser
	case string(RoleAssistant), wireAssistant:
		*r = RoleAssistant
	default:
		return fmt.Errorf("unknown message sender %q", v)
	}
	return nil
}

// ApologyText is appended in place of an assistant reply that could not be generated.
const ApologyText = "Sorry, I encountered an error. Please try again."

// Message is one entry of a conversation transcript. Messages are never
// modified after they are appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// SendMessageRequest is the request to send a user message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// FirstUserMessage returns the first message sent by the user.
func FirstUserMessage(messages []Message) (Message, bool) {
	for _, m := range messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}
