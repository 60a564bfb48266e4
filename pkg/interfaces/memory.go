package interfaces

import (
	"context"
	"time"
)

// Message represents a message in a conversation
type Message struct {
	// ID is a short opaque identifier
	ID string `json:"id"`

	// Role is the role of the message sender (e.g., "user", "assistant", "system")
	Role string `json:"role"`

	// Content is the content of the message
	Content string `json:"content"`

	// CreatedAt is when the turn was accepted
	CreatedAt time.Time `json:"created_at"`

	// Metadata contains additional information about the message
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Memory represents a transcript store for conversations
type Memory interface {
	// AddMessage adds a message to memory
	AddMessage(ctx context.Context, message Message) error

	// GetMessages retrieves messages from memory
	GetMessages(ctx context.Context, options ...GetMessagesOption) ([]Message, error)

	// Clear clears the memory
	Clear(ctx context.Context) error
}

// GetMessagesOptions contains options for retrieving messages
type GetMessagesOptions struct {
	// Limit is the maximum number of messages to retrieve
	Limit int

	// Roles filters messages by role
	Roles []string

}

// GetMessagesOption represents an option for retrieving messages
type GetMessagesOption func(*GetMessagesOptions)

// WithLimit sets the maximum number of messages to retrieve
func WithLimit(limit int) GetMessagesOption {
	return func(o *GetMessagesOptions) {
		o.Limit = limit
	}
}

// WithRoles filters messages by role
func WithRoles(roles ...string) GetMessagesOption {
	return func(o *GetMessagesOptions) {
		o.Roles = roles
	}
}
