package vendors

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrVendorNotFound indicates no vendor exists for the id within the account.
var ErrVendorNotFound = errors.New("vendors: vendor not found")

// Repository is the full vendor store. Selector only needs the narrower
// Directory slice of it.
type Repository interface {
	Directory
	Create(ctx context.Context, vendor *Vendor) (*Vendor, error)
	GetByID(ctx context.Context, accountID, id string) (*Vendor, error)
	UpdatePresence(ctx context.Context, accountID, id string, online bool, lastSeen time.Time) error
	AdjustCurrentOrders(ctx context.Context, accountID, id string, delta int) error
}

// InMemoryDirectory is a map-backed Repository for tests and local runs.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	vendors map[string]*Vendor
}

// NewInMemoryDirectory creates an empty in-memory vendor store.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{vendors: make(map[string]*Vendor)}
}

// Create stores a vendor, assigning an id when absent.
func (d *InMemoryDirectory) Create(_ context.Context, vendor *Vendor) (*Vendor, error) {
	if vendor == nil {
		return nil, errors.New("vendors: nil vendor")
	}
	stored := *vendor
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vendors[stored.ID] = &stored
	out := stored
	return &out, nil
}

// GetByID fetches a vendor scoped to the account.
func (d *InMemoryDirectory) GetByID(_ context.Context, accountID, id string) (*Vendor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.vendors[id]
	if !ok || v.AccountID != accountID {
		return nil, ErrVendorNotFound
	}
	out := *v
	return &out, nil
}

// ListCandidates returns the account's vendors offering the service type.
// Status and availability gating is the Selector's job, not the store's.
func (d *InMemoryDirectory) ListCandidates(_ context.Context, accountID, serviceType string) ([]Vendor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Vendor
	for _, v := range d.vendors {
		if v.AccountID == accountID && v.OffersService(serviceType) {
			out = append(out, *v)
		}
	}
	return out, nil
}

// UpdatePresence records the vendor's online flag and last-seen time.
func (d *InMemoryDirectory) UpdatePresence(_ context.Context, accountID, id string, online bool, lastSeen time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vendors[id]
	if !ok || v.AccountID != accountID {
		return ErrVendorNotFound
	}
	v.Online = online
	v.LastSeen = lastSeen
	return nil
}

// AdjustCurrentOrders shifts the vendor's pending-order load, flooring at zero.
func (d *InMemoryDirectory) AdjustCurrentOrders(_ context.Context, accountID, id string, delta int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vendors[id]
	if !ok || v.AccountID != accountID {
		return ErrVendorNotFound
	}
	v.CurrentOrders += delta
	if v.CurrentOrders < 0 {
		v.CurrentOrders = 0
	}
	return nil
}
