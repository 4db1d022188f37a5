package orders

import (
	"context"
	"database/sql"
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

// PostgresStore persists orders with an optimistic version column.
type PostgresStore struct {
	pool querier
}

// NewPostgresStore initializes an order store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newStoreWithExec(exec querier) *PostgresStore {
	if exec == nil {
		panic("orders: exec required")
	}
	return &PostgresStore{pool: exec}
}

type orderColumns struct {
	assigned []byte
	fallback []byte
	declined []byte
	before   []byte
	after    []byte
	history  []byte
}

func encodeOrder(order *Order) (orderColumns, error) {
	var cols orderColumns
	for _, pair := range []struct {
		dst *[]byte
		src any
	}{
		{&cols.assigned, order.AssignedVendors},
		{&cols.fallback, order.FallbackVendors},
		{&cols.declined, order.DeclinedVendors},
		{&cols.before, order.BeforeArtifacts},
		{&cols.after, order.AfterArtifacts},
		{&cols.history, order.History},
	} {
		data, err := json.Marshal(pair.src)
		if err != nil {
			return cols, fmt.Errorf("orders: encode column: %w", err)
		}
		*pair.dst = data
	}
	return cols, nil
}

// Create inserts the order with version 1.
func (s *PostgresStore) Create(ctx context.Context, order *Order) (*Order, error) {
	if order == nil {
		return nil, fmt.Errorf("orders: nil order")
	}
	cols, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	id := order.ID
	if id == "" {
		id = uuid.NewString()
	}
	query := `
		INSERT INTO orders (
			id, account_id, conversation_id, trigger_rule_id,
			customer_name, customer_contact, customer_location, latitude, longitude,
			service_type, description, priority, estimated_value, dealing_price,
			status, vendor_id, assigned_vendors, fallback_vendors, declined_vendors,
			before_artifacts, after_artifacts,
			invoice_generated, invoice_id, cancel_reason, history, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, 1)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := s.pool.QueryRow(ctx, query,
		id, order.AccountID, order.ConversationID, order.TriggerRuleID,
		order.CustomerName, order.CustomerContact, order.CustomerLocation,
		order.Latitude, order.Longitude,
		order.ServiceType, order.Description, order.Priority,
		order.EstimatedValue, order.DealingPrice,
		order.Status, order.VendorID, cols.assigned, cols.fallback, cols.declined,
		cols.before, cols.after,
		order.InvoiceGenerated, order.InvoiceID, order.CancelReason, cols.history,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("orders: insert order: %w", err)
	}

	stored := *order
	stored.ID = id
	stored.Version = 1
	stored.CreatedAt = createdAt
	stored.UpdatedAt = updatedAt
	return &stored, nil
}

const orderSelect = `
	SELECT id, account_id, conversation_id, trigger_rule_id,
		customer_name, customer_contact, customer_location, latitude, longitude,
		service_type, description, priority, estimated_value, dealing_price,
		status, vendor_id, assigned_vendors, fallback_vendors, declined_vendors,
		before_artifacts, after_artifacts,
		invoice_generated, invoice_id, cancel_reason, history, version,
		created_at, updated_at, cancelled_at
	FROM orders
`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order       Order
		cols        orderColumns
		cancelledAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &order.AccountID, &order.ConversationID, &order.TriggerRuleID,
		&order.CustomerName, &order.CustomerContact, &order.CustomerLocation,
		&order.Latitude, &order.Longitude,
		&order.ServiceType, &order.Description, &order.Priority,
		&order.EstimatedValue, &order.DealingPrice,
		&order.Status, &order.VendorID, &cols.assigned, &cols.fallback, &cols.declined,
		&cols.before, &cols.after,
		&order.InvoiceGenerated, &order.InvoiceID, &order.CancelReason, &cols.history,
		&order.Version, &order.CreatedAt, &order.UpdatedAt, &cancelledAt,
	); err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		order.CancelledAt = cancelledAt.Time
	}

	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{cols.assigned, &order.AssignedVendors},
		{cols.fallback, &order.FallbackVendors},
		{cols.declined, &order.DeclinedVendors},
		{cols.before, &order.BeforeArtifacts},
		{cols.after, &order.AfterArtifacts},
		{cols.history, &order.History},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("orders: decode column: %w", err)
		}
	}
	return &order, nil
}

// Get fetches an order scoped to the account.
func (s *PostgresStore) Get(ctx context.Context, accountID, id string) (*Order, error) {
	row := s.pool.QueryRow(ctx, orderSelect+` WHERE id = $1 AND account_id = $2`, id, accountID)
	order, err := scanOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("orders: select order: %w", err)
	}
	return order, nil
}

// Update writes the order back guarded by the version the caller read.
// A zero-row update against an existing order means a concurrent writer won.
func (s *PostgresStore) Update(ctx context.Context, order *Order) (*Order, error) {
	if order == nil {
		return nil, fmt.Errorf("orders: nil order")
	}
	cols, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			status = $4, vendor_id = $5,
			assigned_vendors = $6, fallback_vendors = $7, declined_vendors = $8,
			before_artifacts = $9, after_artifacts = $10,
			dealing_price = $11, invoice_generated = $12, invoice_id = $13,
			cancel_reason = $14, history = $15, cancelled_at = $16,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND account_id = $2 AND version = $3
	`,
		order.ID, order.AccountID, order.Version,
		order.Status, order.VendorID,
		cols.assigned, cols.fallback, cols.declined,
		cols.before, cols.after,
		order.DealingPrice, order.InvoiceGenerated, order.InvoiceID,
		order.CancelReason, cols.history, nullableTime(order.CancelledAt),
	)
	if err != nil {
		return nil, fmt.Errorf("orders: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, order.AccountID, order.ID); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}

	updated := *order
	updated.Version++
	return &updated, nil
}

// ListByConversation returns the orders created from one conversation.
func (s *PostgresStore) ListByConversation(ctx context.Context, accountID, conversationID string) ([]Order, error) {
	rows, err := s.pool.Query(ctx,
		orderSelect+` WHERE account_id = $1 AND conversation_id = $2 ORDER BY created_at`,
		accountID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("orders: list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan order: %w", err)
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: iterate orders: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
