package subscription

import (
	"time"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// PaymentFailureEvent is the audit record of a failed charge attempt. The
// age and count of unresolved events drive the reminder cadence and the
// suspension decision.
type PaymentFailureEvent struct {
	ID             string  `db:"id" json:"id"`
	SubscriptionID string  `db:"subscription_id" json:"subscription_id"`
	InvoiceID      *string `db:"invoice_id" json:"invoice_id,omitempty"`
	// AttemptNumber is the position of this failure in the current run of
	// consecutive failures, starting at 1
	AttemptNumber int        `db:"attempt_number" json:"attempt_number"`
	Reason        string     `db:"reason" json:"reason"`
	FailedAt      time.Time  `db:"failed_at" json:"failed_at"`
	Resolved      bool       `db:"resolved" json:"resolved"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	types.BaseModel
}

func (e *PaymentFailureEvent) Validate() error {
	if e.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if e.AttemptNumber <= 0 {
		return ierr.NewError("invalid attempt number").
			WithHint("Attempt number must be positive").
			Mark(ierr.ErrValidation)
	}
	if e.FailedAt.IsZero() {
		return ierr.NewError("failed at is required").
			WithHint("Failure time is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (e *PaymentFailureEvent) TableName() string {
	return "payment_failure_events"
}
