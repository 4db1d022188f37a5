package vendors

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

// PostgresDirectory stores vendors in the relational database. The service
// list is a JSONB column so candidate queries can match with the containment
// operator.
type PostgresDirectory struct {
	pool querier
}

// NewPostgresDirectory initializes a directory backed by pgxpool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("vendors: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

func newDirectoryWithExec(exec querier) *PostgresDirectory {
	if exec == nil {
		panic("vendors: exec required")
	}
	return &PostgresDirectory{pool: exec}
}

// Create inserts a vendor row.
func (d *PostgresDirectory) Create(ctx context.Context, vendor *Vendor) (*Vendor, error) {
	if vendor == nil {
		return nil, fmt.Errorf("vendors: nil vendor")
	}
	services, err := json.Marshal(vendor.Services)
	if err != nil {
		return nil, fmt.Errorf("vendors: encode services: %w", err)
	}

	id := vendor.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = d.pool.Exec(ctx, `
		INSERT INTO vendors (
			id, account_id, name, email, phone, services, status,
			latitude, longitude, radius_km,
			rating, completion_rate, cancellation_rate, response_time_minutes,
			current_orders, max_concurrent_orders, total_orders, recent_orders,
			online, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20)
	`,
		id, vendor.AccountID, vendor.Name, vendor.Email, vendor.Phone,
		services, vendor.Status,
		vendor.Latitude, vendor.Longitude, vendor.RadiusKm,
		vendor.Rating, vendor.CompletionRate, vendor.CancellationRate,
		vendor.ResponseTimeMinutes,
		vendor.CurrentOrders, vendor.MaxConcurrentOrders,
		vendor.TotalOrders, vendor.RecentOrders,
		vendor.Online, vendor.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("vendors: insert vendor: %w", err)
	}

	stored := *vendor
	stored.ID = id
	return &stored, nil
}

const vendorSelect = `
	SELECT id, account_id, name, email, phone, services, status,
		latitude, longitude, radius_km,
		rating, completion_rate, cancellation_rate, response_time_minutes,
		current_orders, max_concurrent_orders, total_orders, recent_orders,
		online, last_seen
	FROM vendors
`

func scanVendor(row pgx.Row) (*Vendor, error) {
	var (
		v        Vendor
		services []byte
	)
	if err := row.Scan(
		&v.ID, &v.AccountID, &v.Name, &v.Email, &v.Phone, &services, &v.Status,
		&v.Latitude, &v.Longitude, &v.RadiusKm,
		&v.Rating, &v.CompletionRate, &v.CancellationRate, &v.ResponseTimeMinutes,
		&v.CurrentOrders, &v.MaxConcurrentOrders, &v.TotalOrders, &v.RecentOrders,
		&v.Online, &v.LastSeen,
	); err != nil {
		return nil, err
	}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &v.Services); err != nil {
			return nil, fmt.Errorf("vendors: decode services: %w", err)
		}
	}
	return &v, nil
}

// GetByID fetches a vendor scoped to the account.
func (d *PostgresDirectory) GetByID(ctx context.Context, accountID, id string) (*Vendor, error) {
	row := d.pool.QueryRow(ctx, vendorSelect+` WHERE id = $1 AND account_id = $2`, id, accountID)
	v, err := scanVendor(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("vendors: select vendor: %w", err)
	}
	return v, nil
}

// ListCandidates returns the account's non-blocked vendors offering the
// service type. An empty service list counts as a generalist.
func (d *PostgresDirectory) ListCandidates(ctx context.Context, accountID, serviceType string) ([]Vendor, error) {
	rows, err := d.pool.Query(ctx, vendorSelect+`
		WHERE account_id = $1
		  AND status <> 'blocked'
		  AND ($2 = '' OR services = '[]'::jsonb OR services @> to_jsonb($2::text))
	`, accountID, serviceType)
	if err != nil {
		return nil, fmt.Errorf("vendors: list candidates: %w", err)
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("vendors: scan vendor: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vendors: iterate vendors: %w", err)
	}
	return out, nil
}

// UpdatePresence records the vendor's online flag and last-seen time.
func (d *PostgresDirectory) UpdatePresence(ctx context.Context, accountID, id string, online bool, lastSeen time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE vendors SET online = $3, last_seen = $4
		WHERE id = $1 AND account_id = $2
	`, id, accountID, online, lastSeen)
	if err != nil {
		return fmt.Errorf("vendors: update presence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}

// AdjustCurrentOrders shifts the vendor's pending-order load, flooring at zero.
func (d *PostgresDirectory) AdjustCurrentOrders(ctx context.Context, accountID, id string, delta int) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE vendors SET current_orders = GREATEST(current_orders + $3, 0)
		WHERE id = $1 AND account_id = $2
	`, id, accountID, delta)
	if err != nil {
		return fmt.Errorf("vendors: adjust current orders: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}
