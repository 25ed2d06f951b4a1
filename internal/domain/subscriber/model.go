package subscriber

import (
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Subscriber is the billing identity behind a subscription: either an
// individual user (basecamp) or an organisation. The owner reference is
// mutually exclusive, captured as (owner_type, owner_id).
type Subscriber struct {
	ID        string                    `db:"id" json:"id"`
	OwnerType types.SubscriberOwnerType `db:"owner_type" json:"owner_type"`
	OwnerID   string                    `db:"owner_id" json:"owner_id"`
	Name      string                    `db:"name" json:"name"`
	Email     string                    `db:"email" json:"email"`
	// PaymentGateway selects which gateway adapter bills this subscriber
	PaymentGateway types.PaymentGatewayType `db:"payment_gateway" json:"payment_gateway"`
	// GatewayCustomerID is the customer reference on the gateway side,
	// set lazily on first charge
	GatewayCustomerID *string `db:"gateway_customer_id" json:"gateway_customer_id,omitempty"`
	// ActiveUserCount is the number of seats currently billable; kept in
	// sync by the HR domain which owns membership
	ActiveUserCount int `db:"active_user_count" json:"active_user_count"`

	types.BaseModel
}

func (s *Subscriber) Validate() error {
	if err := s.OwnerType.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Owner type must be user or organisation").
			Mark(ierr.ErrValidation)
	}
	if s.OwnerID == "" {
		return ierr.NewError("owner id is required").
			WithHint("Owner id is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.PaymentGateway.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Payment gateway must be stripe or paypal").
			Mark(ierr.ErrValidation)
	}
	if s.ActiveUserCount < 0 {
		return ierr.NewError("invalid active user count").
			WithHint("Active user count must be non negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *Subscriber) TableName() string {
	return "subscribers"
}
