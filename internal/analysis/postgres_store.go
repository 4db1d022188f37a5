package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresSummaryStore persists summaries to PostgreSQL for long-term history.
// Reprocessing a conversation replaces the stored row.
type PostgresSummaryStore struct {
	db *sql.DB
}

// NewPostgresSummaryStore creates a summary store backed by database/sql.
func NewPostgresSummaryStore(db *sql.DB) *PostgresSummaryStore {
	if db == nil {
		return nil
	}
	return &PostgresSummaryStore{db: db}
}

// Save upserts the summary row keyed by (account_id, conversation_id).
func (s *PostgresSummaryStore) Save(ctx context.Context, summary *ConversationSummary) error {
	if s == nil || s.db == nil {
		return nil
	}
	if summary == nil {
		return fmt.Errorf("analysis: nil summary")
	}

	business, err := json.Marshal(summary.Business)
	if err != nil {
		return fmt.Errorf("analysis: marshal business data: %w", err)
	}
	turns, err := json.Marshal(summary.Turns)
	if err != nil {
		return fmt.Errorf("analysis: marshal turns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_summaries (
			id, account_id, conversation_id, call_id, phone, direction,
			started_at, ended_at, duration_secs, call_status,
			turn_count, customer_turn_count, agent_turn_count,
			overall_sentiment, sentiment_label, primary_intent,
			lead_score, engagement, completeness, conversion_probability,
			business_data, turns, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (account_id, conversation_id) DO UPDATE SET
			call_id = EXCLUDED.call_id,
			phone = EXCLUDED.phone,
			direction = EXCLUDED.direction,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			duration_secs = EXCLUDED.duration_secs,
			call_status = EXCLUDED.call_status,
			turn_count = EXCLUDED.turn_count,
			customer_turn_count = EXCLUDED.customer_turn_count,
			agent_turn_count = EXCLUDED.agent_turn_count,
			overall_sentiment = EXCLUDED.overall_sentiment,
			sentiment_label = EXCLUDED.sentiment_label,
			primary_intent = EXCLUDED.primary_intent,
			lead_score = EXCLUDED.lead_score,
			engagement = EXCLUDED.engagement,
			completeness = EXCLUDED.completeness,
			conversion_probability = EXCLUDED.conversion_probability,
			business_data = EXCLUDED.business_data,
			turns = EXCLUDED.turns,
			created_at = EXCLUDED.created_at
	`,
		uuid.New(), summary.AccountID, summary.ConversationID, summary.CallID,
		summary.Phone, summary.Direction,
		nullableTime(summary.StartedAt), nullableTime(summary.EndedAt),
		summary.DurationSecs, summary.CallStatus,
		summary.TurnCount, summary.CustomerTurnCount, summary.AgentTurnCount,
		summary.OverallSentiment, summary.SentimentLabel, summary.PrimaryIntent,
		summary.Quality.LeadScore, summary.Quality.Engagement,
		summary.Quality.Completeness, summary.Quality.ConversionProbability,
		business, turns, summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("analysis: save summary: %w", err)
	}
	return nil
}

// Get loads one summary scoped to the account.
func (s *PostgresSummaryStore) Get(ctx context.Context, accountID, conversationID string) (*ConversationSummary, error) {
	if s == nil || s.db == nil {
		return nil, ErrSummaryNotFound
	}

	var (
		summary  ConversationSummary
		started  sql.NullTime
		ended    sql.NullTime
		business []byte
		turns    []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, conversation_id, call_id, phone, direction,
			started_at, ended_at, duration_secs, call_status,
			turn_count, customer_turn_count, agent_turn_count,
			overall_sentiment, sentiment_label, primary_intent,
			lead_score, engagement, completeness, conversion_probability,
			business_data, turns, created_at
		FROM conversation_summaries
		WHERE account_id = $1 AND conversation_id = $2
	`, accountID, conversationID).Scan(
		&summary.AccountID, &summary.ConversationID, &summary.CallID,
		&summary.Phone, &summary.Direction,
		&started, &ended, &summary.DurationSecs, &summary.CallStatus,
		&summary.TurnCount, &summary.CustomerTurnCount, &summary.AgentTurnCount,
		&summary.OverallSentiment, &summary.SentimentLabel, &summary.PrimaryIntent,
		&summary.Quality.LeadScore, &summary.Quality.Engagement,
		&summary.Quality.Completeness, &summary.Quality.ConversionProbability,
		&business, &turns, &summary.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("analysis: load summary: %w", err)
	}

	if started.Valid {
		summary.StartedAt = started.Time
	}
	if ended.Valid {
		summary.EndedAt = ended.Time
	}
	if len(business) > 0 {
		if err := json.Unmarshal(business, &summary.Business); err != nil {
			return nil, fmt.Errorf("analysis: decode business data: %w", err)
		}
	}
	if len(turns) > 0 {
		if err := json.Unmarshal(turns, &summary.Turns); err != nil {
			return nil, fmt.Errorf("analysis: decode turns: %w", err)
		}
	}
	return &summary, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
