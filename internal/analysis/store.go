package analysis

import (
	"context"
	"errors"
	"sync"
)

// ErrSummaryNotFound indicates no summary exists for the conversation.
var ErrSummaryNotFound = errors.New("analysis: summary not found")

// SummaryStore persists conversation summaries. Writes supersede any prior
// summary for the same conversation id; the old row is replaced, not mutated.
type SummaryStore interface {
	Save(ctx context.Context, summary *ConversationSummary) error
	Get(ctx context.Context, accountID, conversationID string) (*ConversationSummary, error)
}

// InMemorySummaryStore is a map-backed SummaryStore for tests and local runs.
type InMemorySummaryStore struct {
	mu        sync.RWMutex
	summaries map[string]*ConversationSummary
}

// NewInMemorySummaryStore creates an empty in-memory store.
func NewInMemorySummaryStore() *InMemorySummaryStore {
	return &InMemorySummaryStore{summaries: make(map[string]*ConversationSummary)}
}

func summaryKey(accountID, conversationID string) string {
	return accountID + ":" + conversationID
}

// Save stores or replaces the summary.
func (s *InMemorySummaryStore) Save(_ context.Context, summary *ConversationSummary) error {
	if summary == nil {
		return errors.New("analysis: nil summary")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summaryKey(summary.AccountID, summary.ConversationID)] = summary
	return nil
}

// Get retrieves a summary scoped to the account.
func (s *InMemorySummaryStore) Get(_ context.Context, accountID, conversationID string) (*ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[summaryKey(accountID, conversationID)]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	return summary, nil
}
