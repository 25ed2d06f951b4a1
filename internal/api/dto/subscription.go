package dto

import (
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// CreateSubscriptionRequest activates a subscription for a subscriber.
// A zero user count defaults to the subscriber's active seat count.
type CreateSubscriptionRequest struct {
	SubscriberID string                 `json:"subscriber_id" binding:"required"`
	Tier         types.SubscriptionTier `json:"tier" binding:"required"`
	UserCount    int                    `json:"user_count"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := r.Tier.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Unknown subscription tier").
			Mark(ierr.ErrValidation)
	}
	if r.UserCount < 0 {
		return ierr.NewError("invalid user count").
			WithHint("User count must be non negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// UpdateQuantityRequest changes the seat count mid-cycle
type UpdateQuantityRequest struct {
	UserCount int `json:"user_count" binding:"required,min=1"`
}

// CancelSubscriptionRequest requests cancellation, immediately or at the
// end of the current period
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// SubscriptionResponse represents a subscription in API responses
type SubscriptionResponse struct {
	*subscription.Subscription
}

// ListSubscriptionsResponse is a list of subscriptions
type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Total int                     `json:"total"`
}
