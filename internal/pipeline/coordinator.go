package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/dispatch-ai-platform/internal/analysis"
	"github.com/fieldserve/dispatch-ai-platform/internal/orders"
	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
	"github.com/fieldserve/dispatch-ai-platform/internal/trigger"
	"github.com/fieldserve/dispatch-ai-platform/internal/vendors"
	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// DefaultProcessingTimeout bounds one full pipeline run.
const DefaultProcessingTimeout = 30 * time.Second

// Cache status values reported on a Result.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheUpdated = "updated"
)

// Store status values reported on a Result.
const (
	StoreSaved   = "saved"
	StoreFailed  = "failed"
	StoreSkipped = "skipped"
)

// ErrorKind classifies a processing failure.
type ErrorKind string

const (
	ErrValidation        ErrorKind = "validation"
	ErrUnsupportedSource ErrorKind = "unsupported_source"
	ErrTimeout           ErrorKind = "timeout"
	ErrInternal          ErrorKind = "internal"
)

// ProcessingError is the typed error carried by an unsuccessful Result.
type ProcessingError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Options tune one process call.
type Options struct {
	ForceReprocess      bool `json:"force_reprocess"`
	SkipVendorSelection bool `json:"skip_vendor_selection"`
	SkipCache           bool `json:"skip_cache"`

	// Customer coordinates for vendor selection, resolved upstream.
	CustomerLatitude  float64 `json:"customer_latitude,omitempty"`
	CustomerLongitude float64 `json:"customer_longitude,omitempty"`
	EstimatedValue    float64 `json:"estimated_value,omitempty"`
}

// Result is the structured outcome of one process call. Process never returns
// a Go error across the external interface; failures are typed on the result.
type Result struct {
	Success            bool                          `json:"success"`
	ConversationID     string                        `json:"conversation_id"`
	ProcessingTimeMs   int64                         `json:"processing_time_ms"`
	Summary            *analysis.ConversationSummary `json:"summary,omitempty"`
	Activations        []trigger.Activation          `json:"activations,omitempty"`
	Selection          *vendors.Result               `json:"selection,omitempty"`
	OrderID            string                        `json:"order_id,omitempty"`
	CacheStatus        string                        `json:"cache_status"`
	ConversationStatus EntryStatus                   `json:"conversation_status,omitempty"`
	StoreStatus        string                        `json:"store_status"`
	StageMillis        map[string]int64              `json:"stage_millis,omitempty"`
	Err                *ProcessingError              `json:"error,omitempty"`
}

// Metrics receives pipeline observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	StageObserved(stage string, elapsed time.Duration)
	RunCompleted(status string, elapsed time.Duration)
	CacheLookup(hit bool)
	RuleFired(ruleType string)
	SelectionCompleted(primaryCount int)
}

type nopMetrics struct{}

func (nopMetrics) StageObserved(string, time.Duration) {}
func (nopMetrics) RunCompleted(string, time.Duration)  {}
func (nopMetrics) CacheLookup(bool)                    {}
func (nopMetrics) RuleFired(string)                    {}
func (nopMetrics) SelectionCompleted(int)              {}

// Selector runs vendor selection for an activated trigger.
type Selector interface {
	Select(ctx context.Context, req *vendors.Request) (*vendors.Result, error)
}

// OrderCreator creates an order from a completed selection.
type OrderCreator interface {
	CreateFromSelection(ctx context.Context, order *orders.Order, result *vendors.Result) (*orders.Order, error)
}

// ActivationPublisher pushes operator notices for fired rules. Best-effort.
type ActivationPublisher interface {
	PublishActivation(ctx context.Context, activation *trigger.Activation, notifyEmail string) error
}

// Coordinator drives the five pipeline stages for one conversation and owns
// the at-most-one-run-per-conversation guarantee.
type Coordinator struct {
	normalizer  *transcript.Normalizer
	turns       *analysis.TurnAnalyzer
	summarizer  *analysis.Summarizer
	evaluator   *trigger.Evaluator
	rules       trigger.RuleRepository
	activations trigger.ActivationRepository
	selector    Selector
	orders      OrderCreator
	publisher   ActivationPublisher
	summaries   analysis.SummaryStore
	cache       ProcessingCache
	metrics     Metrics
	logger      *logging.Logger

	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// Deps bundles the coordinator's collaborators. Normalizer, turn analyzer,
// summarizer, evaluator, and rules are required; the rest degrade to no-ops.
type Deps struct {
	Normalizer  *transcript.Normalizer
	Turns       *analysis.TurnAnalyzer
	Summarizer  *analysis.Summarizer
	Evaluator   *trigger.Evaluator
	Rules       trigger.RuleRepository
	Activations trigger.ActivationRepository
	Selector    Selector
	Orders      OrderCreator
	Publisher   ActivationPublisher
	Summaries   analysis.SummaryStore
	Cache       ProcessingCache
	Metrics     Metrics
	Logger      *logging.Logger
}

// CoordinatorOption customizes coordinator behavior.
type CoordinatorOption func(*Coordinator)

// WithProcessingTimeout overrides the per-run deadline.
func WithProcessingTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator wires the pipeline.
func NewCoordinator(deps Deps, opts ...CoordinatorOption) *Coordinator {
	if deps.Normalizer == nil || deps.Turns == nil || deps.Summarizer == nil ||
		deps.Evaluator == nil || deps.Rules == nil {
		panic("pipeline: normalizer, turn analyzer, summarizer, evaluator, and rules required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}

	c := &Coordinator{
		normalizer:  deps.Normalizer,
		turns:       deps.Turns,
		summarizer:  deps.Summarizer,
		evaluator:   deps.Evaluator,
		rules:       deps.Rules,
		activations: deps.Activations,
		selector:    deps.Selector,
		orders:      deps.Orders,
		publisher:   deps.Publisher,
		summaries:   deps.Summaries,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		logger:      deps.Logger.Component("pipeline"),
		timeout:     DefaultProcessingTimeout,
		now:         time.Now,
		locks:       make(map[string]*conversationLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process runs the pipeline for one raw call payload. It always returns a
// structured result, never an error.
func (c *Coordinator) Process(ctx context.Context, payload []byte, source, accountID string, opts Options) *Result {
	start := c.now()

	record, err := c.normalizer.Normalize(payload, source)
	if err != nil {
		kind := ErrValidation
		if errors.Is(err, transcript.ErrUnsupportedSource) {
			kind = ErrUnsupportedSource
		}
		result := &Result{
			CacheStatus: CacheMiss,
			StoreStatus: StoreSkipped,
			Err:         &ProcessingError{Kind: kind, Message: err.Error()},
		}
		result.ProcessingTimeMs = c.sinceMillis(start)
		c.metrics.RunCompleted("rejected", c.now().Sub(start))
		return result
	}

	// Payload-provided ids win; calls that carry neither get a generated one.
	conversationID := firstNonEmpty(record.ConversationID, record.CallID, uuid.NewString())
	record.ConversationID = conversationID

	unlock := c.lockConversation(conversationID)
	defer unlock()

	useCache := c.cache != nil && !opts.SkipCache
	if useCache && !opts.ForceReprocess {
		if entry, err := c.cache.Get(ctx, conversationID); err == nil {
			switch entry.Status {
			case EntryCompleted:
				c.metrics.CacheLookup(true)
				c.metrics.RunCompleted("cache_hit", c.now().Sub(start))
				return &Result{
					Success:            true,
					ConversationID:     conversationID,
					ProcessingTimeMs:   c.sinceMillis(start),
					Summary:            entry.Summary,
					Activations:        entry.Activations,
					Selection:          entry.Selection,
					OrderID:            entry.OrderID,
					CacheStatus:        CacheHit,
					ConversationStatus: EntryCompleted,
					StoreStatus:        StoreSkipped,
				}
			case EntryActive:
				// A run is in flight; do not start a duplicate.
				c.metrics.CacheLookup(true)
				c.metrics.RunCompleted("duplicate", c.now().Sub(start))
				return &Result{
					Success:            true,
					ConversationID:     conversationID,
					ProcessingTimeMs:   c.sinceMillis(start),
					CacheStatus:        CacheHit,
					ConversationStatus: EntryActive,
					StoreStatus:        StoreSkipped,
				}
			}
		} else if !errors.Is(err, ErrEntryNotFound) {
			// Cache trouble degrades to uncached computation.
			c.logger.Warn("cache lookup failed, processing uncached",
				"conversation_id", conversationID, "error", err)
			useCache = false
		}
		c.metrics.CacheLookup(false)
	}

	if useCache {
		active := &CacheEntry{
			ConversationID: conversationID,
			AccountID:      accountID,
			Status:         EntryActive,
			CreatedAt:      c.now().UTC(),
			UpdatedAt:      c.now().UTC(),
		}
		if err := c.cache.Put(ctx, active); err != nil {
			c.logger.Warn("cache write failed, processing uncached",
				"conversation_id", conversationID, "error", err)
			useCache = false
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := c.run(runCtx, record, accountID, opts, start)

	if useCache {
		entry := &CacheEntry{
			ConversationID: conversationID,
			AccountID:      accountID,
			Status:         EntryCompleted,
			Summary:        result.Summary,
			Activations:    result.Activations,
			Selection:      result.Selection,
			OrderID:        result.OrderID,
			StageMillis:    result.StageMillis,
			CreatedAt:      c.now().UTC(),
			UpdatedAt:      c.now().UTC(),
		}
		if !result.Success {
			entry.Status = EntryFailed
			if result.Err != nil {
				entry.Error = result.Err.Message
			}
		}
		if err := c.cache.Put(ctx, entry); err != nil {
			c.logger.Warn("cache update failed",
				"conversation_id", conversationID, "error", err)
		} else if result.Success {
			result.CacheStatus = CacheUpdated
		}
	}

	status := "completed"
	if !result.Success {
		status = "failed"
	}
	c.metrics.RunCompleted(status, c.now().Sub(start))
	return result
}

// run executes the sequential stages. The caller owns the conversation lock
// and the cache entry.
func (c *Coordinator) run(ctx context.Context, record *transcript.CallRecord, accountID string, opts Options, start time.Time) *Result {
	result := &Result{
		ConversationID: record.ConversationID,
		CacheStatus:    CacheMiss,
		StoreStatus:    StoreSkipped,
		StageMillis:    make(map[string]int64),
	}
	stageStart := c.now()

	turns, err := c.turns.AnalyzeTurns(ctx, record)
	if err != nil {
		return c.fail(result, start, err)
	}
	c.observeStage(result, "analyze", stageStart)

	stageStart = c.now()
	summary := c.summarizer.Summarize(accountID, record.ConversationID, record, turns)
	result.Summary = summary
	c.observeStage(result, "summarize", stageStart)

	stageStart = c.now()
	rules, err := c.rules.ListActive(ctx, accountID)
	if err != nil {
		return c.fail(result, start, err)
	}
	activations := c.evaluator.Evaluate(summary, rules)
	result.Activations = activations
	c.observeStage(result, "evaluate", stageStart)

	ruleByID := make(map[string]*trigger.Rule, len(rules))
	for i := range rules {
		ruleByID[rules[i].ID] = &rules[i]
	}
	for i := range activations {
		activation := &activations[i]
		rule := ruleByID[activation.RuleID]
		if rule == nil {
			continue
		}
		c.metrics.RuleFired(string(rule.Type))

		if c.activations != nil {
			if err := c.activations.Record(ctx, activation); err != nil {
				c.logger.Warn("activation record failed",
					"rule_id", activation.RuleID, "error", err)
			}
		}
		if c.publisher != nil && rule.Actions.SendEmail {
			if err := c.publisher.PublishActivation(ctx, activation, rule.Actions.NotifyEmail); err != nil {
				c.logger.Warn("activation notice failed",
					"rule_id", activation.RuleID, "error", err)
			}
		}
	}

	if dispatchRule := dispatchable(activations, ruleByID); dispatchRule != nil && !opts.SkipVendorSelection {
		stageStart = c.now()
		selection, orderID, err := c.dispatch(ctx, summary, dispatchRule, opts)
		if err != nil {
			return c.fail(result, start, err)
		}
		result.Selection = selection
		result.OrderID = orderID
		c.observeStage(result, "select", stageStart)
	}

	if c.summaries != nil {
		if err := c.summaries.Save(ctx, summary); err != nil {
			c.logger.Warn("summary save failed",
				"conversation_id", record.ConversationID, "error", err)
			result.StoreStatus = StoreFailed
		} else {
			result.StoreStatus = StoreSaved
		}
	}

	result.Success = true
	result.ProcessingTimeMs = c.sinceMillis(start)
	c.logger.Info("conversation processed",
		"conversation_id", record.ConversationID,
		"account_id", accountID,
		"activations", len(result.Activations),
		"order_id", result.OrderID,
		"elapsed_ms", result.ProcessingTimeMs)
	return result
}

// dispatchable picks the rule driving vendor selection: the highest-priority
// activated rule that asks for an order or vendor notification.
func dispatchable(activations []trigger.Activation, ruleByID map[string]*trigger.Rule) *trigger.Rule {
	var best *trigger.Rule
	for i := range activations {
		rule := ruleByID[activations[i].RuleID]
		if rule == nil || (!rule.Actions.CreateOrder && !rule.Actions.NotifyVendors) {
			continue
		}
		if best == nil || rule.Actions.Priority > best.Actions.Priority {
			best = rule
		}
	}
	return best
}

func (c *Coordinator) dispatch(ctx context.Context, summary *analysis.ConversationSummary, rule *trigger.Rule, opts Options) (*vendors.Result, string, error) {
	if c.selector == nil {
		return nil, "", nil
	}

	req := &vendors.Request{
		AccountID:          summary.AccountID,
		ServiceType:        summary.Business.ServiceType,
		Latitude:           opts.CustomerLatitude,
		Longitude:          opts.CustomerLongitude,
		Priority:           rule.PriorityLabel(),
		EstimatedValue:     opts.EstimatedValue,
		MaxVendors:         rule.Criteria.MaxVendors,
		MinRating:          rule.Criteria.MinRating,
		MaxRadiusKm:        rule.Criteria.RadiusKm,
		PreferAvailable:    rule.Criteria.PreferAvailable,
		StrictServiceMatch: rule.Criteria.WorkTypeMatch,
	}
	selection, err := c.selector.Select(ctx, req)
	if err != nil {
		// Vendor-fetch failure aborts selection; the pipeline result still
		// carries the summary, so surface as no vendors.
		return nil, "", fmt.Errorf("pipeline: vendor selection: %w", err)
	}
	c.metrics.SelectionCompleted(len(selection.Primary))

	if !rule.Actions.CreateOrder || c.orders == nil {
		return selection, "", nil
	}

	order := &orders.Order{
		AccountID:        summary.AccountID,
		ConversationID:   summary.ConversationID,
		TriggerRuleID:    rule.ID,
		CustomerName:     summary.Business.Name,
		CustomerContact:  firstNonEmpty(summary.Business.Contact, summary.Phone),
		CustomerLocation: summary.Business.Location,
		Latitude:         opts.CustomerLatitude,
		Longitude:        opts.CustomerLongitude,
		ServiceType:      summary.Business.ServiceType,
		Description:      fmt.Sprintf("Dispatch for %q activation", rule.Name),
		Priority:         rule.PriorityLabel(),
		EstimatedValue:   opts.EstimatedValue,
	}
	created, err := c.orders.CreateFromSelection(ctx, order, selection)
	if err != nil {
		return selection, "", fmt.Errorf("pipeline: order creation: %w", err)
	}
	return selection, created.ID, nil
}

func (c *Coordinator) fail(result *Result, start time.Time, err error) *Result {
	kind := ErrInternal
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	result.Success = false
	result.Err = &ProcessingError{Kind: kind, Message: err.Error()}
	result.ProcessingTimeMs = c.sinceMillis(start)
	c.logger.Error("pipeline run failed",
		"conversation_id", result.ConversationID, "kind", string(kind), "error", err)
	return result
}

func (c *Coordinator) observeStage(result *Result, stage string, start time.Time) {
	elapsed := c.now().Sub(start)
	result.StageMillis[stage] = elapsed.Milliseconds()
	c.metrics.StageObserved(stage, elapsed)
}

func (c *Coordinator) sinceMillis(start time.Time) int64 {
	ms := c.now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// lockConversation serializes processing per conversation id. Lock entries
// are reference counted so the map does not grow unbounded.
func (c *Coordinator) lockConversation(conversationID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[conversationID]
	if !ok {
		lock = &conversationLock{}
		c.locks[conversationID] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, conversationID)
		}
		c.mu.Unlock()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
