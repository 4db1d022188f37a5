package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/internal/vendors"
)

// DefaultCacheTTL bounds how long a processed conversation short-circuits
// reprocessing.
const DefaultCacheTTL = 24 * time.Hour

// EntryStatus is the lifecycle of one conversation's pipeline run.
type EntryStatus string

const (
	EntryActive    EntryStatus = "active"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// ErrEntryNotFound indicates no cache entry exists for the conversation.
var ErrEntryNotFound = errors.New("pipeline: cache entry not found")

// CacheEntry tracks one conversation's processing status and, once completed,
// its results. A second request for the same conversation while the entry is
// active must not start a duplicate run.
type CacheEntry struct {
	ConversationID string      `json:"conversation_id"`
	AccountID      string      `json:"account_id"`
	Status         EntryStatus `json:"status"`

	Summary     *analysis.ConversationSummary `json:"summary,omitempty"`
	Activations []trigger.Activation          `json:"activations,omitempty"`
	Selection   *vendors.Result               `json:"selection,omitempty"`
	OrderID     string                        `json:"order_id,omitempty"`
	Error       string                        `json:"error,omitempty"`

	// StageMillis records per-stage wall time for the completed run.
	StageMillis map[string]int64 `json:"stage_millis,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry's TTL has lapsed.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// ProcessingCache stores per-conversation entries with a TTL. Implementations
// must be safe for concurrent use; the coordinator serializes writes per
// conversation id on top.
type ProcessingCache interface {
	Get(ctx context.Context, conversationID string) (*CacheEntry, error)
	Put(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, conversationID string) error
}
