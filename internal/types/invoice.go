package types

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its
// lifecycle. Paid invoices are immutable.
type InvoiceStatus string

const (
	// InvoiceStatusPending indicates the invoice is awaiting payment
	InvoiceStatusPending InvoiceStatus = "pending"
	// InvoiceStatusPaid indicates the invoice has been settled in full
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusOverdue indicates the due date passed without payment
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	// InvoiceStatusCancelled indicates the subscription was cancelled
	// before the invoice was paid
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid invoice status: %s", s)
	}
	return nil
}

// IsPayable reports whether a payment may still be applied to an invoice
// in this status. Overdue invoices remain payable.
func (s InvoiceStatus) IsPayable() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusOverdue
}

// FormatInvoiceNumber renders the externally visible invoice number for a
// billing month and sequence value, e.g. INV-202608-0042. The format is a
// fixed contract with downstream reporting and must not change.
func FormatInvoiceNumber(yearMonth string, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", yearMonth, seq)
}

// InvoiceYearMonth returns the YYYYMM sequence bucket for a billing date.
func InvoiceYearMonth(billingDate time.Time) string {
	return billingDate.UTC().Format("200601")
}

// InvoiceFilter represents the filter for listing invoices
type InvoiceFilter struct {
	SubscriberID   string          `form:"subscriber_id"`
	SubscriptionID string          `form:"subscription_id"`
	Statuses       []InvoiceStatus `form:"statuses"`
	DueBefore      *time.Time      `form:"due_before"`
}
