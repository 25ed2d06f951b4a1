package payment

import (
	"time"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is a record of funds received against one invoice. The pair
// (invoice_id, gateway_transaction_id) is unique and enforces idempotent
// confirmation: re-applying the same gateway transaction is rejected.
type Payment struct {
	ID           string `db:"id" json:"id"`
	InvoiceID    string `db:"invoice_id" json:"invoice_id"`
	SubscriberID string `db:"subscriber_id" json:"subscriber_id"`

	PaymentMethod types.PaymentMethodType `db:"payment_method" json:"payment_method"`
	Amount        decimal.Decimal         `db:"amount" json:"amount"`
	Currency      string                  `db:"currency" json:"currency"`

	// GatewayTransactionID is the charge/capture reference on the gateway
	// side; empty only for manual bank transfers awaiting review
	GatewayTransactionID string `db:"gateway_transaction_id" json:"gateway_transaction_id"`

	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentDate   time.Time           `db:"payment_date" json:"payment_date"`
	RefundedAt    *time.Time          `db:"refunded_at" json:"refunded_at,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`
	// ProofPath points to an uploaded proof document for manual bank
	// transfers
	ProofPath *string `db:"proof_path" json:"proof_path,omitempty"`

	types.BaseModel
}

func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice id is required").
			WithHint("Invoice id is required").
			Mark(ierr.ErrValidation)
	}
	if p.SubscriberID == "" {
		return ierr.NewError("subscriber id is required").
			WithHint("Subscriber id is required").
			Mark(ierr.ErrValidation)
	}
	if p.Amount.IsZero() || p.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if err := p.PaymentMethod.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid payment method").
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	// manual bank transfers are the only payments allowed to omit a
	// gateway transaction reference
	if p.GatewayTransactionID == "" && p.PaymentMethod != types.PaymentMethodTypeBankTransfer {
		return ierr.NewError("gateway transaction id is required").
			WithHint("Gateway transaction id is required for gateway payments").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (p *Payment) TableName() string {
	return "payments"
}
