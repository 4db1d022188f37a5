package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Store persists orders. Update is an optimistic write: it only succeeds when
// the stored row still carries the version the caller read, so concurrent
// vendor-response webhooks cannot race a transition.
type Store interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	Get(ctx context.Context, accountID, id string) (*Order, error)
	Update(ctx context.Context, order *Order) (*Order, error)
	ListByConversation(ctx context.Context, accountID, conversationID string) ([]Order, error)
}

// InMemoryStore is a map-backed Store for tests and local runs. It enforces
// the same optimistic-version semantics as the database-backed store.
type InMemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewInMemoryStore creates an empty in-memory order store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[string]*Order)}
}

// Create stores a new order, assigning an id when absent.
func (s *InMemoryStore) Create(_ context.Context, order *Order) (*Order, error) {
	if order == nil {
		return nil, errors.New("orders: nil order")
	}
	stored := *order
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Version = 1

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[stored.ID] = cloneOrder(&stored)
	return cloneOrder(&stored), nil
}

// Get fetches an order scoped to the account.
func (s *InMemoryStore) Get(_ context.Context, accountID, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok || order.AccountID != accountID {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Update writes an order back if its version still matches, bumping it.
func (s *InMemoryStore) Update(_ context.Context, order *Order) (*Order, error) {
	if order == nil {
		return nil, errors.New("orders: nil order")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.ID]
	if !ok || existing.AccountID != order.AccountID {
		return nil, ErrOrderNotFound
	}
	if existing.Version != order.Version {
		return nil, ErrVersionConflict
	}

	stored := cloneOrder(order)
	stored.Version++
	s.orders[order.ID] = stored
	return cloneOrder(stored), nil
}

// ListByConversation returns the orders created from one conversation.
func (s *InMemoryStore) ListByConversation(_ context.Context, accountID, conversationID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, order := range s.orders {
		if order.AccountID == accountID && order.ConversationID == conversationID {
			out = append(out, *cloneOrder(order))
		}
	}
	return out, nil
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.AssignedVendors = append([]string(nil), o.AssignedVendors...)
	c.FallbackVendors = append([]string(nil), o.FallbackVendors...)
	c.DeclinedVendors = append([]string(nil), o.DeclinedVendors...)
	c.BeforeArtifacts = append([]string(nil), o.BeforeArtifacts...)
	c.AfterArtifacts = append([]string(nil), o.AfterArtifacts...)
	c.History = append([]Transition(nil), o.History...)
	return &c
}
