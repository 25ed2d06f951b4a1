package invoice

import (
	"time"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is one billing document per subscription per billing cycle.
// Generation is idempotent per (subscriber, subscription, invoice date);
// paid invoices are immutable.
type Invoice struct {
	ID             string `db:"id" json:"id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	SubscriberID   string `db:"subscriber_id" json:"subscriber_id"`

	// InvoiceNumber is the externally visible number, INV-YYYYMM-NNNN,
	// sequential within the billing month. Fixed contract with downstream
	// reporting.
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`

	InvoiceDate time.Time `db:"invoice_date" json:"invoice_date"`
	DueDate     time.Time `db:"due_date" json:"due_date"`

	UserCount    int             `db:"user_count" json:"user_count"`
	PricePerUser decimal.Decimal `db:"price_per_user" json:"price_per_user"`
	Currency     string          `db:"currency" json:"currency"`

	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount   decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	PaidAt        *time.Time          `db:"paid_at" json:"paid_at,omitempty"`

	types.BaseModel
}

func (i *Invoice) Validate() error {
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if i.SubscriberID == "" {
		return ierr.NewError("subscriber id is required").
			WithHint("Subscriber id is required").
			Mark(ierr.ErrValidation)
	}
	if i.UserCount < 1 {
		return ierr.NewError("invalid user count").
			WithHint("User count must be at least 1").
			Mark(ierr.ErrValidation)
	}
	if i.Subtotal.IsNegative() || i.TaxAmount.IsNegative() || i.TotalAmount.IsNegative() {
		return ierr.NewError("invalid invoice amounts").
			WithHint("Invoice amounts must be non negative").
			Mark(ierr.ErrValidation)
	}
	if !i.Subtotal.Add(i.TaxAmount).Equal(i.TotalAmount) {
		return ierr.NewError("invalid invoice total").
			WithHint("Total amount must equal subtotal plus tax").
			Mark(ierr.ErrValidation)
	}
	if i.DueDate.Before(i.InvoiceDate) {
		return ierr.NewError("invalid due date").
			WithHint("Due date must not be before the invoice date").
			Mark(ierr.ErrValidation)
	}
	if err := i.InvoiceStatus.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid invoice status").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MarkPaid transitions the invoice to paid. Only payable invoices may be
// settled; paid invoices are immutable.
func (i *Invoice) MarkPaid(paidAt time.Time) error {
	if !i.InvoiceStatus.IsPayable() {
		return ierr.NewError("invoice is not payable").
			WithHintf("Invoice %s is %s and cannot be paid", i.InvoiceNumber, i.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	i.InvoiceStatus = types.InvoiceStatusPaid
	i.PaidAt = &paidAt
	return nil
}

func (i *Invoice) TableName() string {
	return "invoices"
}
