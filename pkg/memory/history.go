package memory

import "github.com/run-bigpig/healthchat/pkg/interfaces"

// History is the bounded turn list owned by one conversation session.
// Appending past the capacity drops the oldest turns first. It is not safe
// for concurrent use.
type History struct {
	messages []interfaces.Message
	capacity int
}

// NewHistory creates a history holding at most capacity messages. A
// non-positive capacity means unbounded.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Append adds messages in order and trims the oldest beyond capacity
func (h *History) Append(msgs ...interfaces.Message) {
	h.messages = append(h.messages, msgs...)
	if h.capacity > 0 && len(h.messages) > h.capacity {
		trimmed := make([]interfaces.Message, h.capacity)
		copy(trimmed, h.messages[len(h.messages)-h.capacity:])
		h.messages = trimmed
	}
}

// Messages returns a copy of the stored turns, oldest first
func (h *History) Messages() []interfaces.Message {
	out := make([]interfaces.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of stored turns
func (h *History) Len() int {
	return len(h.messages)
}

// Capacity returns the configured bound
func (h *History) Capacity() int {
	return h.capacity
}

// Clear discards all turns
func (h *History) Clear() {
	h.messages = nil
}
