package subscription

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, subscription *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)

	// GetActiveBySubscriberAndTier returns the single non-canceled
	// subscription for a (subscriber, tier) pair if one exists
	GetActiveBySubscriberAndTier(ctx context.Context, subscriberID string, tier types.SubscriptionTier) (*Subscription, error)

	// GetByGatewaySubscriptionID resolves the gateway-side subscription
	// reference carried on inbound webhooks
	GetByGatewaySubscriptionID(ctx context.Context, gatewaySubscriptionID string) (*Subscription, error)

	// ListDue returns subscriptions whose next billing date falls on or
	// before the given time and which are still billable
	ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)
}

// FailureEventRepository defines the interface for payment failure audit
// records
type FailureEventRepository interface {
	Create(ctx context.Context, event *PaymentFailureEvent) error
	ListUnresolved(ctx context.Context, subscriptionID string) ([]*PaymentFailureEvent, error)
	ResolveAll(ctx context.Context, subscriptionID string, resolvedAt time.Time) error
}
