package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRuleRepository stores trigger rules in the relational database.
// Keyword lists and criteria are persisted as JSONB columns.
type PostgresRuleRepository struct {
	pool querier
}

// NewPostgresRuleRepository initializes a repo backed by pgxpool.
func NewPostgresRuleRepository(pool *pgxpool.Pool) *PostgresRuleRepository {
	if pool == nil {
		panic("trigger: pgx pool required")
	}
	return &PostgresRuleRepository{pool: pool}
}

func newRuleRepositoryWithExec(exec querier) *PostgresRuleRepository {
	if exec == nil {
		panic("trigger: exec required")
	}
	return &PostgresRuleRepository{pool: exec}
}

type ruleColumns struct {
	keywords   []byte
	altPhrases []byte
	negatives  []byte
	conditions []byte
	criteria   []byte
	actions    []byte
}

func encodeRule(rule *Rule) (ruleColumns, error) {
	var cols ruleColumns
	var err error
	if cols.keywords, err = json.Marshal(rule.Keywords); err != nil {
		return cols, fmt.Errorf("trigger: encode keywords: %w", err)
	}
	if cols.altPhrases, err = json.Marshal(rule.AlternativePhrases); err != nil {
		return cols, fmt.Errorf("trigger: encode alternative phrases: %w", err)
	}
	if cols.negatives, err = json.Marshal(rule.NegativeKeywords); err != nil {
		return cols, fmt.Errorf("trigger: encode negative keywords: %w", err)
	}
	if cols.conditions, err = json.Marshal(rule.RequiredConditions); err != nil {
		return cols, fmt.Errorf("trigger: encode conditions: %w", err)
	}
	if cols.criteria, err = json.Marshal(rule.Criteria); err != nil {
		return cols, fmt.Errorf("trigger: encode criteria: %w", err)
	}
	if cols.actions, err = json.Marshal(rule.Actions); err != nil {
		return cols, fmt.Errorf("trigger: encode actions: %w", err)
	}
	return cols, nil
}

// Create inserts a new rule row.
func (r *PostgresRuleRepository) Create(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, fmt.Errorf("trigger: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	cols, err := encodeRule(rule)
	if err != nil {
		return nil, err
	}

	id := rule.ID
	if id == "" {
		id = uuid.NewString()
	}
	query := `
		INSERT INTO trigger_rules (
			id, account_id, name, rule_type, keywords, alternative_phrases,
			negative_keywords, required_conditions, threshold, criteria,
			actions, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id, rule.AccountID, rule.Name, rule.Type,
		cols.keywords, cols.altPhrases, cols.negatives, cols.conditions,
		rule.Threshold, cols.criteria, cols.actions, rule.Active,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("trigger: insert rule: %w", err)
	}

	stored := *rule
	stored.ID = id
	stored.CreatedAt = createdAt
	stored.UpdatedAt = updatedAt
	return &stored, nil
}

const ruleSelect = `
	SELECT id, account_id, name, rule_type, keywords, alternative_phrases,
		negative_keywords, required_conditions, threshold, criteria,
		actions, active, created_at, updated_at
	FROM trigger_rules
`

func scanRule(row pgx.Row) (*Rule, error) {
	var (
		rule Rule
		cols ruleColumns
	)
	if err := row.Scan(
		&rule.ID, &rule.AccountID, &rule.Name, &rule.Type,
		&cols.keywords, &cols.altPhrases, &cols.negatives, &cols.conditions,
		&rule.Threshold, &cols.criteria, &cols.actions, &rule.Active,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{cols.keywords, &rule.Keywords},
		{cols.altPhrases, &rule.AlternativePhrases},
		{cols.negatives, &rule.NegativeKeywords},
		{cols.conditions, &rule.RequiredConditions},
		{cols.criteria, &rule.Criteria},
		{cols.actions, &rule.Actions},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("trigger: decode rule column: %w", err)
		}
	}
	return &rule, nil
}

// GetByID fetches a rule scoped to the account.
func (r *PostgresRuleRepository) GetByID(ctx context.Context, accountID, id string) (*Rule, error) {
	row := r.pool.QueryRow(ctx, ruleSelect+` WHERE id = $1 AND account_id = $2`, id, accountID)
	rule, err := scanRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("trigger: select rule: %w", err)
	}
	return rule, nil
}

// ListActive returns the account's active rules, oldest first.
func (r *PostgresRuleRepository) ListActive(ctx context.Context, accountID string) ([]Rule, error) {
	rows, err := r.pool.Query(ctx,
		ruleSelect+` WHERE account_id = $1 AND active ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("trigger: list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("trigger: scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trigger: iterate rules: %w", err)
	}
	return out, nil
}

// Update rewrites a rule row scoped to the account.
func (r *PostgresRuleRepository) Update(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("trigger: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	cols, err := encodeRule(rule)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE trigger_rules SET
			name = $3, rule_type = $4, keywords = $5, alternative_phrases = $6,
			negative_keywords = $7, required_conditions = $8, threshold = $9,
			criteria = $10, actions = $11, active = $12, updated_at = now()
		WHERE id = $1 AND account_id = $2
	`,
		rule.ID, rule.AccountID, rule.Name, rule.Type,
		cols.keywords, cols.altPhrases, cols.negatives, cols.conditions,
		rule.Threshold, cols.criteria, cols.actions, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("trigger: update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule scoped to the account.
func (r *PostgresRuleRepository) Delete(ctx context.Context, accountID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM trigger_rules WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("trigger: delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// PostgresActivationRepository stores rule firings for audit.
type PostgresActivationRepository struct {
	pool querier
}

// NewPostgresActivationRepository initializes the activation log repo.
func NewPostgresActivationRepository(pool *pgxpool.Pool) *PostgresActivationRepository {
	if pool == nil {
		panic("trigger: pgx pool required")
	}
	return &PostgresActivationRepository{pool: pool}
}

func newActivationRepositoryWithExec(exec querier) *PostgresActivationRepository {
	if exec == nil {
		panic("trigger: exec required")
	}
	return &PostgresActivationRepository{pool: exec}
}

// Record appends one activation row.
func (r *PostgresActivationRepository) Record(ctx context.Context, activation *Activation) error {
	if activation == nil {
		return fmt.Errorf("trigger: nil activation")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trigger_activations (
			id, rule_id, rule_name, account_id, conversation_id,
			confidence, reason, conditions_met, fired_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.New(), activation.RuleID, activation.RuleName,
		activation.AccountID, activation.ConversationID,
		activation.Confidence, activation.Reason,
		activation.ConditionsMet, activation.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("trigger: record activation: %w", err)
	}
	return nil
}

// ListByConversation returns the firings recorded for one conversation.
func (r *PostgresActivationRepository) ListByConversation(ctx context.Context, accountID, conversationID string) ([]Activation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rule_id, rule_name, account_id, conversation_id,
			confidence, reason, conditions_met, fired_at
		FROM trigger_activations
		WHERE account_id = $1 AND conversation_id = $2
		ORDER BY fired_at
	`, accountID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("trigger: list activations: %w", err)
	}
	defer rows.Close()

	var out []Activation
	for rows.Next() {
		var a Activation
		if err := rows.Scan(
			&a.RuleID, &a.RuleName, &a.AccountID, &a.ConversationID,
			&a.Confidence, &a.Reason, &a.ConditionsMet, &a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("trigger: scan activation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trigger: iterate activations: %w", err)
	}
	return out, nil
}
