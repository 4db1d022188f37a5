package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestSummarizeEmptyTurns(t *testing.T) {
	s := NewSummarizer(fixedClock)

	summary := s.Summarize("acct-1", "conv-1", nil, nil)
	require.NotNil(t, summary)

	assert.Equal(t, "conv-1", summary.ConversationID)
	assert.Equal(t, "acct-1", summary.AccountID)
	assert.Equal(t, 0, summary.TurnCount)
	assert.Equal(t, defaultIntent, summary.PrimaryIntent)
	assert.Equal(t, "neutral", summary.SentimentLabel)
	assert.Zero(t, summary.OverallSentiment)
	assert.Zero(t, summary.Quality.LeadScore)
	assert.Equal(t, fixedClock(), summary.CreatedAt)
}

func TestSummarizeAggregates(t *testing.T) {
	turns := []Turn{
		{Speaker: transcript.SpeakerAgent, Text: "Hello, how can I help you today?", Intent: "neutral"},
		{Speaker: transcript.SpeakerCustomer, Text: "I need someone to fix my sink", Sentiment: -0.2, Intent: "service_request",
			Entities: []Entity{{Kind: EntityService, Value: "Plumbing"}}},
		{Speaker: transcript.SpeakerCustomer, Text: "It is leaking everywhere", Sentiment: -0.2, Intent: "service_request"},
		{Speaker: transcript.SpeakerAgent, Text: "We can send someone out", Intent: "neutral"},
		{Speaker: transcript.SpeakerCustomer, Text: "Great, thanks, I am at 55 Pine Ave", Sentiment: 0.4, Intent: "neutral",
			Entities: []Entity{{Kind: EntityLocation, Value: "55 Pine Ave"}}},
	}
	rec := &transcript.CallRecord{
		CallID:       "call-9",
		Phone:        "+15551234567",
		Direction:    "inbound",
		DurationSecs: 180,
		Status:       "completed",
	}

	summary := NewSummarizer(fixedClock).Summarize("acct-1", "conv-9", rec, turns)

	assert.Equal(t, "call-9", summary.CallID)
	assert.Equal(t, 180, summary.DurationSecs)
	assert.Equal(t, 5, summary.TurnCount)
	assert.Equal(t, 3, summary.CustomerTurnCount)
	assert.Equal(t, 2, summary.AgentTurnCount)
	// One adjacent same-speaker pair (two customer turns in a row).
	assert.Equal(t, 1, summary.Interruptions)
	assert.Equal(t, "service_request", summary.PrimaryIntent)
	assert.Equal(t, "neutral", summary.SentimentLabel)
	assert.InDelta(t, 0.0, summary.OverallSentiment, 1e-9)

	assert.Equal(t, "Plumbing", summary.Business.ServiceType)
	assert.Equal(t, "55 Pine Ave", summary.Business.Location)
	assert.Empty(t, summary.Business.Name)
}

func TestSummarizePrimaryIntentTieBreak(t *testing.T) {
	turns := []Turn{
		{Speaker: transcript.SpeakerCustomer, Text: "a", Intent: "pricing"},
		{Speaker: transcript.SpeakerAgent, Text: "b", Intent: "neutral"},
		{Speaker: transcript.SpeakerCustomer, Text: "c", Intent: "booking"},
	}
	summary := NewSummarizer(nil).Summarize("a", "c", nil, turns)
	// Tie at one occurrence each: first encountered wins.
	assert.Equal(t, "pricing", summary.PrimaryIntent)
}

func TestSummarizeSentimentLabels(t *testing.T) {
	tests := []struct {
		name      string
		sentiment float64
		label     string
	}{
		{"positive", 0.3, "positive"},
		{"negative", -0.3, "negative"},
		{"inside bucket", 0.05, "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := []Turn{{Speaker: transcript.SpeakerCustomer, Text: "x", Sentiment: tt.sentiment}}
			summary := NewSummarizer(nil).Summarize("a", "c", nil, turns)
			assert.Equal(t, tt.label, summary.SentimentLabel)
		})
	}
}

func TestScoreQualityLeadScore(t *testing.T) {
	summary := &ConversationSummary{
		CustomerTurnCount: 5,
		SentimentLabel:    "positive",
		Business: BusinessData{
			Name:        "Maria Lopez",
			Contact:     "maria@example.com",
			Location:    "123 Main St",
			ServiceType: "Cleaning",
		},
	}
	q := scoreQuality(summary)

	// Full completeness and full engagement: (1 + 1) * 50.
	assert.Equal(t, 100, q.LeadScore)
	assert.Equal(t, 1.0, q.Completeness)
	assert.Equal(t, 1.0, q.Engagement)
	// 1.0 + positive bump, clamped.
	assert.Equal(t, 1.0, q.ConversionProbability)

	summary.Business = BusinessData{Name: "Maria Lopez"}
	summary.CustomerTurnCount = 2
	summary.SentimentLabel = "neutral"
	q = scoreQuality(summary)

	// completeness 0.25, engagement 0.4 -> round(0.65*50) = 33.
	assert.Equal(t, 33, q.LeadScore)
	assert.InDelta(t, 0.33, q.ConversionProbability, 1e-9)
}

func TestSummarizeFlowQuality(t *testing.T) {
	// Perfect alternation over ten turns gives the maximum flow quality.
	turns := make([]Turn, 10)
	for i := range turns {
		turns[i] = Turn{Speaker: transcript.SpeakerAgent, Text: "x"}
		if i%2 == 1 {
			turns[i].Speaker = transcript.SpeakerCustomer
		}
	}
	summary := NewSummarizer(nil).Summarize("a", "c", nil, turns)
	assert.Equal(t, 0, summary.Interruptions)
	assert.InDelta(t, 1.0, summary.FlowQuality, 1e-9)
}
