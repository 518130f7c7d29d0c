// Package model defines data structures shared by the session containers.
package model

import (
	"time"
)

const (
	// DefaultConversationTitle is the placeholder title of a conversation
	// that has not yet been named from its first user message.
	DefaultConversationTitle = "New Chat"

	// MaxConversations is the number of conversations a tenant may hold.
	MaxConversations = 6

	// TitleLength is the number of characters kept when deriving a title.
	TitleLength = 50
)

// Conversation represents a conversation record owned by one tenant.
type Conversation struct {
	ID        string    `json:"_id"`
	TenantID  string    `json:"company_id,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// CreateConversationResponse carries the new record and, when the tenant
// was already at MaxConversations, the title of the record evicted to make room.
type CreateConversationResponse struct {
	Conversation Conversation `json:"newChat"`
	EvictedTitle *string      `json:"deletedChatTitle"`
}

// UpdateConversationRequest replaces the title and message sequence of a conversation.
type UpdateConversationRequest struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// DeriveTitle builds a conversation title from user input, truncating to
// TitleLength characters and marking the cut with an ellipsis.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleLength {
		return text
	}
	return string(runes[:TitleLength]) + "..."
}
