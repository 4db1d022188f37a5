package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/dispatch-ai-platform/internal/transcript"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// TurnAnalyzer runs a TextAnalyzer over every raw turn of a call record.
type TurnAnalyzer struct {
	analyzer TextAnalyzer
	now      Clock
}

// NewTurnAnalyzer creates a turn analyzer. A nil clock defaults to time.Now.
func NewTurnAnalyzer(analyzer TextAnalyzer, now Clock) *TurnAnalyzer {
	if analyzer == nil {
		analyzer = NewKeywordAnalyzer()
	}
	if now == nil {
		now = time.Now
	}
	return &TurnAnalyzer{analyzer: analyzer, now: now}
}

// AnalyzeTurns produces analyzed turns in the order the record delivered them.
// Timestamps default to the current time when the source omitted them.
func (ta *TurnAnalyzer) AnalyzeTurns(ctx context.Context, rec *transcript.CallRecord) ([]Turn, error) {
	if rec == nil {
		return nil, nil
	}

	turns := make([]Turn, 0, len(rec.Turns))
	for i, raw := range rec.Turns {
		result, err := ta.analyzer.Analyze(ctx, raw.Text)
		if err != nil {
			return nil, fmt.Errorf("analysis: turn %d: %w", i, err)
		}

		ts := raw.Timestamp
		if ts.IsZero() {
			ts = ta.now()
		}

		turns = append(turns, Turn{
			ID:         uuid.NewString(),
			Speaker:    raw.Speaker,
			Text:       raw.Text,
			Timestamp:  ts,
			DurationMs: raw.DurationMs,
			Confidence: raw.Confidence,
			Sentiment:  result.Sentiment,
			Intent:     result.Intent,
			Entities:   result.Entities,
		})
	}
	return turns, nil
}
