package invoice

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create creates a new invoice
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// Update updates an existing invoice
	Update(ctx context.Context, invoice *Invoice) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// GetByBillingDate retrieves the invoice for a (subscriber,
	// subscription, billing date) triple if one exists. Billing date is
	// compared at day granularity.
	GetByBillingDate(ctx context.Context, subscriberID, subscriptionID string, billingDate time.Time) (*Invoice, error)

	// NextSequenceValue atomically increments and returns the invoice
	// number counter for the given YYYYMM bucket
	NextSequenceValue(ctx context.Context, yearMonth string) (int64, error)
}
