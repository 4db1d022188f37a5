package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReferenceInvoicer issues invoice references of the form INV-2026-1a2b3c4d.
// The reference is stored on the order; rendering and delivery of the actual
// invoice document happen downstream in the billing system.
type ReferenceInvoicer struct {
	now func() time.Time
}

func NewReferenceInvoicer() *ReferenceInvoicer {
	return &ReferenceInvoicer{now: time.Now}
}

func (g *ReferenceInvoicer) GenerateInvoice(_ context.Context, order *Order) (string, error) {
	if order == nil {
		return "", fmt.Errorf("orders: nil order")
	}
	short := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("INV-%d-%s", g.now().UTC().Year(), short), nil
}

var _ Invoicer = (*ReferenceInvoicer)(nil)
