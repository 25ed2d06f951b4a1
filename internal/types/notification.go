package types

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// NotificationEventName identifies a billing lifecycle event consumed by
// the notification dispatcher. The dispatcher decides how an event is
// delivered; the billing core only decides which event fires and with what
// payload.
type NotificationEventName string

const (
	NotificationEventPaymentFailedDay1     NotificationEventName = "payment_failed.day_1"
	NotificationEventPaymentFailedDay3     NotificationEventName = "payment_failed.day_3"
	NotificationEventPaymentFailedFinal    NotificationEventName = "payment_failed.final"
	NotificationEventAccountSuspended      NotificationEventName = "account_suspended"
	NotificationEventAccountReactivated    NotificationEventName = "account_reactivated"
	NotificationEventPaymentConfirmed      NotificationEventName = "payment_confirmed"
	NotificationEventSubscriptionCancelled NotificationEventName = "subscription_cancelled"
)

func (n NotificationEventName) String() string {
	return string(n)
}

func (n NotificationEventName) Validate() error {
	allowed := []NotificationEventName{
		NotificationEventPaymentFailedDay1,
		NotificationEventPaymentFailedDay3,
		NotificationEventPaymentFailedFinal,
		NotificationEventAccountSuspended,
		NotificationEventAccountReactivated,
		NotificationEventPaymentConfirmed,
		NotificationEventSubscriptionCancelled,
	}
	if !lo.Contains(allowed, n) {
		return fmt.Errorf("invalid notification event name: %s", n)
	}
	return nil
}

// NotificationEvent is the envelope published to the notification topic.
type NotificationEvent struct {
	ID           string                `json:"id"`
	EventName    NotificationEventName `json:"event_name"`
	TenantID     string                `json:"tenant_id"`
	SubscriberID string                `json:"subscriber_id"`
	Timestamp    time.Time             `json:"timestamp"`
	Payload      map[string]any        `json:"payload,omitempty"`
}
