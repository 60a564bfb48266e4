package memory

import (
	"context"
	"sync"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
)

// ConversationBuffer is an in-process transcript store keyed by conversation ID
type ConversationBuffer struct {
	messages map[string][]interfaces.Message
	maxSize  int
	mu       sync.RWMutex
}

// Option represents an option for configuring the conversation buffer
type Option func(*ConversationBuffer)

// WithMaxSize sets the maximum number of messages kept per conversation
func WithMaxSize(size int) Option {
	return func(c *ConversationBuffer) {
		c.maxSize = size
	}
}

// NewConversationBuffer creates a new conversation buffer
func NewConversationBuffer(options ...Option) *ConversationBuffer {
	buffer := &ConversationBuffer{
		messages: make(map[string][]interfaces.Message),
		maxSize:  100,
	}

	for _, option := range options {
		option(buffer)
	}

	return buffer
}

// AddMessage adds a message to the buffer
func (c *ConversationBuffer) AddMessage(ctx context.Context, message interfaces.Message) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := append(c.messages[id], message)
	if c.maxSize > 0 && len(msgs) > c.maxSize {
		msgs = msgs[len(msgs)-c.maxSize:]
	}
	c.messages[id] = msgs

	return nil
}

// GetMessages retrieves messages from the buffer
func (c *ConversationBuffer) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	id, err := conversationID(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	stored := make([]interfaces.Message, len(c.messages[id]))
	copy(stored, c.messages[id])
	c.mu.RUnlock()

	return applyOptions(stored, options...), nil
}

// Clear clears the buffer for a conversation
func (c *ConversationBuffer) Clear(ctx context.Context) error {
	id, err := conversationID(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.messages, id)
	c.mu.Unlock()

	return nil
}

// applyOptions filters by role, then keeps the most recent Limit messages
func applyOptions(messages []interfaces.Message, options ...interfaces.GetMessagesOption) []interfaces.Message {
	opts := &interfaces.GetMessagesOptions{}
	for _, option := range options {
		option(opts)
	}

	if len(opts.Roles) > 0 {
		filtered := make([]interfaces.Message, 0, len(messages))
		for _, msg := range messages {
			for _, role := range opts.Roles {
				if msg.Role == role {
					filtered = append(filtered, msg)
					break
				}
			}
		}
		messages = filtered
	}

	if opts.Limit > 0 && opts.Limit < len(messages) {
		messages = messages[len(messages)-opts.Limit:]
	}

	if messages == nil {
		messages = []interfaces.Message{}
	}
	return messages
}
