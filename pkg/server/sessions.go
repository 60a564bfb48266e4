package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/run-bigpig/healthchat/pkg/chatbot"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the registry is full
	ErrTooManySessions = errors.New("too many sessions")
)

// Factory builds the chatbot for a new session
type Factory func(id string) (*chatbot.Chatbot, error)

// session serializes turns against one chatbot
type session struct {
	mu  sync.Mutex
	bot *chatbot.Chatbot
}

// Registry holds one chatbot per session. Sessions share no history.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	factory  Factory
	max      int
}

// NewRegistry creates a registry. A non-positive max means unlimited.
func NewRegistry(factory Factory, max int) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		factory:  factory,
		max:      max,
	}
}

// Create starts a new session and returns its ID
func (r *Registry) Create() (string, error) {
	id := uuid.NewString()

	r.mu.RLock()
	full := r.max > 0 && len(r.sessions) >= r.max
	r.mu.RUnlock()
	if full {
		return "", ErrTooManySessions
	}

	bot, err := r.factory(id)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return "", ErrTooManySessions
	}
	r.sessions[id] = &session{bot: bot}
	return id, nil
}

func (r *Registry) get(id string) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
