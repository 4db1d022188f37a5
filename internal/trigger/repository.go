package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRuleNotFound indicates no rule exists for the given id within the account.
var ErrRuleNotFound = errors.New("trigger: rule not found")

// RuleRepository stores trigger rules per account.
type RuleRepository interface {
	Create(ctx context.Context, rule *Rule) (*Rule, error)
	GetByID(ctx context.Context, accountID, id string) (*Rule, error)
	ListActive(ctx context.Context, accountID string) ([]Rule, error)
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, accountID, id string) error
}

// ActivationRepository records rule firings for audit and reporting.
type ActivationRepository interface {
	Record(ctx context.Context, activation *Activation) error
	ListByConversation(ctx context.Context, accountID, conversationID string) ([]Activation, error)
}

// ---------- in-memory implementations ----------

// InMemoryRuleRepository is a map-backed RuleRepository for tests and local runs.
type InMemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	now   func() time.Time
}

// NewInMemoryRuleRepository creates an empty in-memory rule repository.
func NewInMemoryRuleRepository() *InMemoryRuleRepository {
	return &InMemoryRuleRepository{rules: make(map[string]*Rule), now: time.Now}
}

// Create validates and stores a new rule, assigning an id when absent.
func (r *InMemoryRuleRepository) Create(_ context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, errors.New("trigger: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	stored := *rule
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = r.now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[stored.ID] = &stored
	out := stored
	return &out, nil
}

// GetByID fetches a rule scoped to the account.
func (r *InMemoryRuleRepository) GetByID(_ context.Context, accountID, id string) (*Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok || rule.AccountID != accountID {
		return nil, ErrRuleNotFound
	}
	out := *rule
	return &out, nil
}

// ListActive returns the account's active rules.
func (r *InMemoryRuleRepository) ListActive(_ context.Context, accountID string) ([]Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Rule
	for _, rule := range r.rules {
		if rule.AccountID == accountID && rule.Active {
			out = append(out, *rule)
		}
	}
	return out, nil
}

// Update replaces a stored rule in place.
func (r *InMemoryRuleRepository) Update(_ context.Context, rule *Rule) error {
	if rule == nil {
		return errors.New("trigger: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rules[rule.ID]
	if !ok || existing.AccountID != rule.AccountID {
		return ErrRuleNotFound
	}
	stored := *rule
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = r.now().UTC()
	r.rules[rule.ID] = &stored
	return nil
}

// Delete removes a rule scoped to the account.
func (r *InMemoryRuleRepository) Delete(_ context.Context, accountID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok || rule.AccountID != accountID {
		return ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

// InMemoryActivationRepository keeps activations in memory, newest last.
type InMemoryActivationRepository struct {
	mu          sync.RWMutex
	activations []Activation
}

// NewInMemoryActivationRepository creates an empty activation log.
func NewInMemoryActivationRepository() *InMemoryActivationRepository {
	return &InMemoryActivationRepository{}
}

// Record appends one activation.
func (r *InMemoryActivationRepository) Record(_ context.Context, activation *Activation) error {
	if activation == nil {
		return errors.New("trigger: nil activation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations = append(r.activations, *activation)
	return nil
}

// ListByConversation returns the firings recorded for one conversation.
func (r *InMemoryActivationRepository) ListByConversation(_ context.Context, accountID, conversationID string) ([]Activation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Activation
	for _, a := range r.activations {
		if a.AccountID == accountID && a.ConversationID == conversationID {
			out = append(out, a)
		}
	}
	return out, nil
}
