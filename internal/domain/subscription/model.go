package subscription

import (
	"time"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Subscription represents a recurring monthly billing agreement between a
// subscriber and a tier. Subscriptions are never hard deleted; terminal
// records are retained for audit.
type Subscription struct {
	ID                 string                   `db:"id" json:"id"`
	SubscriberID       string                   `db:"subscriber_id" json:"subscriber_id"`
	Tier               types.SubscriptionTier   `db:"tier" json:"tier"`
	UserCount          int                      `db:"user_count" json:"user_count"`
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	CurrentPeriodStart *time.Time `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	NextBillingDate    *time.Time `db:"next_billing_date" json:"next_billing_date,omitempty"`

	// GatewaySubscriptionID is the recurring agreement reference on the
	// gateway side; nil for manually billed subscriptions
	GatewaySubscriptionID *string `db:"gateway_subscription_id" json:"gateway_subscription_id,omitempty"`

	// PaymentFailedCount counts consecutive failed charges; reset to zero
	// on any successful payment
	PaymentFailedCount int `db:"payment_failed_count" json:"payment_failed_count"`
	// FirstFailedAt anchors the grace period; nil when in good standing
	FirstFailedAt *time.Time `db:"first_failed_at" json:"first_failed_at,omitempty"`

	ActivatedAt *time.Time `db:"activated_at" json:"activated_at,omitempty"`
	CanceledAt  *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	SuspendedAt *time.Time `db:"suspended_at" json:"suspended_at,omitempty"`

	types.BaseModel
}

func (s *Subscription) Validate() error {
	if s.SubscriberID == "" {
		return ierr.NewError("subscriber id is required").
			WithHint("Subscriber id is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.Tier.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Tier must be one of spark, momentum, vision, basecamp").
			Mark(ierr.ErrValidation)
	}
	if s.UserCount < 1 {
		return ierr.NewError("invalid user count").
			WithHint("User count must be at least 1").
			Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid subscription status").
			Mark(ierr.ErrValidation)
	}
	if s.CurrentPeriodStart != nil && s.CurrentPeriodEnd != nil &&
		!s.CurrentPeriodEnd.After(*s.CurrentPeriodStart) {
		return ierr.NewError("invalid billing period").
			WithHint("Current period end must be after period start").
			Mark(ierr.ErrValidation)
	}
	if s.SubscriptionStatus == types.SubscriptionStatusCanceled && s.CanceledAt == nil {
		return ierr.NewError("canceled subscription missing canceled_at").
			WithHint("Canceled subscriptions must record their cancellation time").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TransitionTo moves the subscription to target after checking the state
// machine allows it.
func (s *Subscription) TransitionTo(target types.SubscriptionStatus) error {
	if !s.SubscriptionStatus.CanTransitionTo(target) {
		return ierr.NewError("invalid subscription state transition").
			WithHintf("Cannot transition subscription from %s to %s", s.SubscriptionStatus, target).
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"from":            s.SubscriptionStatus,
				"to":              target,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	s.SubscriptionStatus = target
	return nil
}

// IsUsable reports whether the subscriber still has access: active and
// past_due subscriptions are usable, as is a pending cancellation until
// its period ends.
func (s *Subscription) IsUsable(now time.Time) bool {
	switch s.SubscriptionStatus {
	case types.SubscriptionStatusActive, types.SubscriptionStatusPastDue:
		return true
	case types.SubscriptionStatusCancelAtPeriodEnd:
		return s.CurrentPeriodEnd == nil || now.Before(*s.CurrentPeriodEnd)
	}
	return false
}

func (s *Subscription) TableName() string {
	return "subscriptions"
}
