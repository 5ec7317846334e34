package history

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentweave/core"
)

// InMemoryStore is a volatile Store keeping conversations in a process local
// map. Returned histories are copies.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]core.Content
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string][]core.Content)}
}

// Load returns a copy of the stored history.
func (s *InMemoryStore) Load(_ context.Context, conversationID string) ([]core.Content, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return core.CloneContents(s.conversations[conversationID]), nil
}

// Append adds messages to the end of the conversation, creating it lazily.
func (s *InMemoryStore) Append(_ context.Context, conversationID string, messages ...core.Content) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = append(s.conversations[conversationID], core.CloneContents(messages)...)
	return nil
}

// Delete removes the conversation. Unknown ids are ignored.
func (s *InMemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)
	return nil
}

// List returns the stored conversation ids sorted.
func (s *InMemoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
