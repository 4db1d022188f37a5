package analysis

import (
	"time"

	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
)

// EntityKind classifies an extracted entity.
type EntityKind string

const (
	EntityPerson   EntityKind = "person"
	EntityLocation EntityKind = "location"
	EntityPhone    EntityKind = "phone"
	EntityEmail    EntityKind = "email"
	EntityService  EntityKind = "service"
	EntityUrgency  EntityKind = "urgency"
	EntityDateTime EntityKind = "datetime"
)

// Entity is a value extracted from turn text with its source span.
type Entity struct {
	Kind       EntityKind `json:"kind"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	SpanStart  int        `json:"span_start"`
	SpanEnd    int        `json:"span_end"`
}

// Analysis is the per-turn output of a TextAnalyzer.
type Analysis struct {
	Sentiment float64  `json:"sentiment"` // in [-1,1]
	Intent    string   `json:"intent"`
	Entities  []Entity `json:"entities"`
}

// Turn is a conversation turn with analysis attached. Immutable once produced;
// ordering by timestamp is significant.
type Turn struct {
	ID         string             `json:"id"`
	Speaker    transcript.Speaker `json:"speaker"`
	Text       string             `json:"text"`
	Timestamp  time.Time          `json:"timestamp"`
	DurationMs int                `json:"duration_ms,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Sentiment  float64            `json:"sentiment"`
	Intent     string             `json:"intent"`
	Entities   []Entity           `json:"entities,omitempty"`
}

// BusinessData is the collapsed per-kind extraction across customer turns.
// First match wins when multiple entities of a kind exist.
type BusinessData struct {
	Name        string `json:"name,omitempty"`
	Contact     string `json:"contact,omitempty"`
	Location    string `json:"location,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
}

// QualityMetrics summarizes lead quality for a conversation.
type QualityMetrics struct {
	LeadScore             int     `json:"lead_score"`              // 0-100
	Engagement            float64 `json:"engagement"`              // 0-1
	Completeness          float64 `json:"completeness"`            // 0-1
	ConversionProbability float64 `json:"conversion_probability"` // 0-1
}

// ConversationSummary aggregates the analyzed turns for one conversation.
// It is immutable after the pipeline completes; reprocessing supersedes it.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	AccountID      string    `json:"account_id"`
	CallID         string    `json:"call_id"`
	Phone          string    `json:"phone"`
	Direction      string    `json:"direction"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	DurationSecs   int       `json:"duration_secs"`
	CallStatus     string    `json:"call_status"`

	TurnCount         int     `json:"turn_count"`
	CustomerTurnCount int     `json:"customer_turn_count"`
	AgentTurnCount    int     `json:"agent_turn_count"`
	AvgTurnWords      float64 `json:"avg_turn_words"`
	FlowQuality       float64 `json:"flow_quality"`
	Interruptions     int     `json:"interruptions"`

	OverallSentiment float64 `json:"overall_sentiment"`
	SentimentLabel   string  `json:"sentiment_label"` // positive, neutral, negative
	PrimaryIntent    string  `json:"primary_intent"`

	Business BusinessData   `json:"business"`
	Quality  QualityMetrics `json:"quality"`

	Turns     []Turn    `json:"turns,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
