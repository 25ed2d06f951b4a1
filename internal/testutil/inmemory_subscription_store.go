package testutil

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func (s *InMemorySubscriptionStore) SnapshotState() any {
	return s.Snapshot()
}

func (s *InMemorySubscriptionStore) RestoreState(snapshot any) {
	s.Restore(snapshot.(map[string]*subscription.Subscription))
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	cp := *sub
	return &cp
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if err := s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || sub.TenantID != types.GetTenantID(ctx) || sub.Status == types.StatusDeleted {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if err := s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub)); err != nil {
		return ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	matches, _ := s.InMemoryStore.List(ctx, filter, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		if sub.TenantID != types.GetTenantID(ctx) || sub.Status == types.StatusDeleted {
			return false
		}
		if filter == nil {
			return true
		}
		if filter.SubscriberID != "" && sub.SubscriberID != filter.SubscriberID {
			return false
		}
		if filter.Tier != nil && sub.Tier != *filter.Tier {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, sub.SubscriptionStatus) {
			return false
		}
		return true
	}, func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	return lo.Map(matches, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) GetActiveBySubscriberAndTier(ctx context.Context, subscriberID string, tier types.SubscriptionTier) (*subscription.Subscription, error) {
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.SubscriberID == subscriberID &&
			sub.Tier == tier &&
			sub.SubscriptionStatus != types.SubscriptionStatusCanceled &&
			sub.TenantID == types.GetTenantID(ctx) &&
			sub.Status != types.StatusDeleted
	}, nil)
	if len(matches) == 0 {
		return nil, ierr.NewError("subscription not found").
			WithHintf("No active %s subscription found for subscriber %s", tier, subscriberID).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(matches[0]), nil
}

func (s *InMemorySubscriptionStore) GetByGatewaySubscriptionID(ctx context.Context, gatewaySubscriptionID string) (*subscription.Subscription, error) {
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.GatewaySubscriptionID != nil &&
			*sub.GatewaySubscriptionID == gatewaySubscriptionID &&
			sub.TenantID == types.GetTenantID(ctx) &&
			sub.Status != types.StatusDeleted
	}, nil)
	if len(matches) == 0 {
		return nil, ierr.NewError("subscription not found").
			WithHintf("No subscription found for gateway reference %s", gatewaySubscriptionID).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(matches[0]), nil
}

func (s *InMemorySubscriptionStore) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	billable := []types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCancelAtPeriodEnd,
	}
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.NextBillingDate != nil &&
			!sub.NextBillingDate.After(asOf) &&
			lo.Contains(billable, sub.SubscriptionStatus) &&
			sub.TenantID == types.GetTenantID(ctx) &&
			sub.Status != types.StatusDeleted
	}, func(i, j *subscription.Subscription) bool {
		return i.NextBillingDate.Before(*j.NextBillingDate)
	})
	return lo.Map(matches, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

// InMemoryFailureEventStore implements subscription.FailureEventRepository
type InMemoryFailureEventStore struct {
	*InMemoryStore[*subscription.PaymentFailureEvent]
}

func NewInMemoryFailureEventStore() *InMemoryFailureEventStore {
	return &InMemoryFailureEventStore{
		InMemoryStore: NewInMemoryStore[*subscription.PaymentFailureEvent](),
	}
}

func (s *InMemoryFailureEventStore) SnapshotState() any {
	return s.Snapshot()
}

func (s *InMemoryFailureEventStore) RestoreState(snapshot any) {
	s.Restore(snapshot.(map[string]*subscription.PaymentFailureEvent))
}

func copyFailureEvent(event *subscription.PaymentFailureEvent) *subscription.PaymentFailureEvent {
	cp := *event
	return &cp
}

func (s *InMemoryFailureEventStore) Create(ctx context.Context, event *subscription.PaymentFailureEvent) error {
	if err := s.InMemoryStore.Create(ctx, event.ID, copyFailureEvent(event)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record payment failure event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *InMemoryFailureEventStore) ListUnresolved(ctx context.Context, subscriptionID string) ([]*subscription.PaymentFailureEvent, error) {
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, event *subscription.PaymentFailureEvent, _ interface{}) bool {
		return event.SubscriptionID == subscriptionID &&
			!event.Resolved &&
			event.TenantID == types.GetTenantID(ctx)
	}, func(i, j *subscription.PaymentFailureEvent) bool {
		return i.FailedAt.Before(j.FailedAt)
	})
	return lo.Map(matches, func(event *subscription.PaymentFailureEvent, _ int) *subscription.PaymentFailureEvent {
		return copyFailureEvent(event)
	}), nil
}

func (s *InMemoryFailureEventStore) ResolveAll(ctx context.Context, subscriptionID string, resolvedAt time.Time) error {
	unresolved, err := s.ListUnresolved(ctx, subscriptionID)
	if err != nil {
		return err
	}
	for _, event := range unresolved {
		event.Resolved = true
		event.ResolvedAt = &resolvedAt
		if err := s.InMemoryStore.Update(ctx, event.ID, event); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
	}
	return nil
}
