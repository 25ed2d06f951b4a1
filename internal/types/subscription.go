package types

import (
	"fmt"

	"github.com/samber/lo"
)

// SubscriptionStatus is the status of a subscription in its billing
// lifecycle. Transitions between statuses are owned by the subscription
// service; nothing else should mutate them.
type SubscriptionStatus string

const (
	// SubscriptionStatusActive indicates a subscription in good standing
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusPastDue indicates the last charge failed and the
	// subscription is inside its grace period
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"
	// SubscriptionStatusCancelAtPeriodEnd indicates a pending cancellation
	// that takes effect when the current billing period ends
	SubscriptionStatusCancelAtPeriodEnd SubscriptionStatus = "cancel_at_period_end"
	// SubscriptionStatusCanceled is terminal
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	// SubscriptionStatusSuspended indicates the grace period expired
	// without payment; access is revoked but the record is retained
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelAtPeriodEnd,
		SubscriptionStatusCanceled,
		SubscriptionStatusSuspended,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid subscription status: %s", s)
	}
	return nil
}

// IsTerminal returns true for statuses no lifecycle event may leave.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled
}

// CanTransitionTo reports whether the state machine allows a transition
// from s to target. Self transitions are allowed for active (renewal) and
// past_due (repeated failures within the grace period).
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case SubscriptionStatusActive:
		return lo.Contains([]SubscriptionStatus{
			SubscriptionStatusActive,
			SubscriptionStatusPastDue,
			SubscriptionStatusCancelAtPeriodEnd,
			SubscriptionStatusCanceled,
		}, target)
	case SubscriptionStatusPastDue:
		return lo.Contains([]SubscriptionStatus{
			SubscriptionStatusActive,
			SubscriptionStatusPastDue,
			SubscriptionStatusSuspended,
			SubscriptionStatusCancelAtPeriodEnd,
			SubscriptionStatusCanceled,
		}, target)
	case SubscriptionStatusCancelAtPeriodEnd:
		return target == SubscriptionStatusCanceled
	case SubscriptionStatusSuspended:
		return lo.Contains([]SubscriptionStatus{
			SubscriptionStatusActive,
			SubscriptionStatusCanceled,
		}, target)
	}
	return false
}

// SubscriptionFilter represents the filter for listing subscriptions
type SubscriptionFilter struct {
	SubscriberID string               `form:"subscriber_id"`
	Tier         *SubscriptionTier    `form:"tier"`
	Statuses     []SubscriptionStatus `form:"statuses"`
}
