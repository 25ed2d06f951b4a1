package payment

import (
	"context"

	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create inserts a new payment. Implementations must enforce the
	// unique (invoice_id, gateway_transaction_id) constraint and surface
	// violations as ErrAlreadyProcessed so that concurrent confirmations
	// of the same gateway transaction cannot both succeed.
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)

	// GetByGatewayTransactionID retrieves the payment recorded for a
	// (invoice, gateway transaction) pair if one exists
	GetByGatewayTransactionID(ctx context.Context, invoiceID, gatewayTransactionID string) (*Payment, error)
}
