// Package conversation holds the ordered, append-only message history of a
// single assistant session.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"blv-assistant/internal/domain"
)

var (
	// ErrInvalidRoleSequence is returned when an append would break the
	// system-first / user-then-assistant ordering of the history.
	ErrInvalidRoleSequence = errors.New("conversation: invalid role sequence")
	// ErrEmptyContent is returned when a message has no text.
	ErrEmptyContent = errors.New("conversation: message content must not be empty")
	// ErrNotInitialized is returned when appending before a system prompt is set.
	ErrNotInitialized = errors.New("conversation: not initialized")
)

// Store is the conversation history of one session. The first message is
// always the system prompt and messages are never reordered or removed.
// Readers may take snapshots concurrently with appends.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message
}

// New creates a Store initialized with systemPrompt.
func New(systemPrompt string) (*Store, error) {
	s := &Store{}
	if _, err := s.Initialize(systemPrompt); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize sets the system prompt. Calling it on an already initialized
// store is a no-op that returns the existing history.
func (s *Store) Initialize(systemPrompt string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 0 {
		return cloneMessages(s.messages), nil
	}
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return nil, fmt.Errorf("conversation: system prompt: %w", ErrEmptyContent)
	}
	s.messages = append(s.messages, domain.Message{Role: domain.RoleSystem, Content: systemPrompt})
	return cloneMessages(s.messages), nil
}

// Append adds a user or assistant message at the tail.
//
// An assistant message must directly follow a user message. A user message
// may follow the system prompt, an assistant reply, or a user message whose
// completion failed and was never answered.
func (s *Store) Append(role domain.Role, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ErrNotInitialized
	}
	last := s.messages[len(s.messages)-1].Role
	switch role {
	case domain.RoleUser:
	case domain.RoleAssistant:
		if last != domain.RoleUser {
			return fmt.Errorf("%w: assistant after %s", ErrInvalidRoleSequence, last)
		}
	default:
		return fmt.Errorf("%w: cannot append %q message", ErrInvalidRoleSequence, role)
	}
	s.messages = append(s.messages, domain.Message{Role: role, Content: content})
	return nil
}

// Snapshot returns a copy of the full history in append order.
func (s *Store) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// TailSince returns the messages appended after index marker. A negative
// marker returns everything; a marker past the end returns nothing.
func (s *Store) TailSince(marker int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := marker + 1
	if start < 0 {
		start = 0
	}
	if start >= len(s.messages) {
		return nil
	}
	return cloneMessages(s.messages[start:])
}

// Len returns the number of messages, including the system prompt.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message.
func (s *Store) Last() (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return domain.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

func cloneMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, len(in))
	copy(out, in)
	return out
}
