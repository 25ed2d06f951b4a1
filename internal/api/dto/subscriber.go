package dto

import (
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// CreateSubscriberRequest registers a billing identity for a user or an
// organisation.
type CreateSubscriberRequest struct {
	OwnerType       types.SubscriberOwnerType `json:"owner_type" binding:"required"`
	OwnerID         string                    `json:"owner_id" binding:"required"`
	Name            string                    `json:"name"`
	Email           string                    `json:"email" binding:"required,email"`
	PaymentGateway  types.PaymentGatewayType  `json:"payment_gateway" binding:"required"`
	ActiveUserCount int                       `json:"active_user_count"`
}

func (r *CreateSubscriberRequest) Validate() error {
	if err := r.OwnerType.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Owner type must be user or organisation").
			Mark(ierr.ErrValidation)
	}
	if err := r.PaymentGateway.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Payment gateway must be stripe or paypal").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *CreateSubscriberRequest) ToSubscriber() *subscriber.Subscriber {
	return &subscriber.Subscriber{
		OwnerType:       r.OwnerType,
		OwnerID:         r.OwnerID,
		Name:            r.Name,
		Email:           r.Email,
		PaymentGateway:  r.PaymentGateway,
		ActiveUserCount: r.ActiveUserCount,
	}
}

// UpdateSeatCountRequest syncs the billable seat count from membership
type UpdateSeatCountRequest struct {
	ActiveUserCount int `json:"active_user_count" binding:"min=0"`
}

// SubscriberResponse represents a subscriber in API responses
type SubscriberResponse struct {
	*subscriber.Subscriber
}
