package testutil

import (
	"context"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// InMemorySubscriberStore implements subscriber.Repository
type InMemorySubscriberStore struct {
	*InMemoryStore[*subscriber.Subscriber]
}

func NewInMemorySubscriberStore() *InMemorySubscriberStore {
	return &InMemorySubscriberStore{
		InMemoryStore: NewInMemoryStore[*subscriber.Subscriber](),
	}
}

func (s *InMemorySubscriberStore) SnapshotState() any {
	return s.Snapshot()
}

func (s *InMemorySubscriberStore) RestoreState(snapshot any) {
	s.Restore(snapshot.(map[string]*subscriber.Subscriber))
}

func copySubscriber(sub *subscriber.Subscriber) *subscriber.Subscriber {
	cp := *sub
	return &cp
}

func (s *InMemorySubscriberStore) Create(ctx context.Context, sub *subscriber.Subscriber) error {
	if err := s.InMemoryStore.Create(ctx, sub.ID, copySubscriber(sub)); err != nil {
		return ierr.WithError(err).
			WithHint("A subscriber already exists for this owner").
			Mark(ierr.ErrAlreadyProcessed)
	}
	return nil
}

func (s *InMemorySubscriberStore) Get(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || sub.TenantID != types.GetTenantID(ctx) || sub.Status == types.StatusDeleted {
		return nil, ierr.NewError("subscriber not found").
			WithHintf("Subscriber with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copySubscriber(sub), nil
}

func (s *InMemorySubscriberStore) GetByOwner(ctx context.Context, ownerType types.SubscriberOwnerType, ownerID string) (*subscriber.Subscriber, error) {
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscriber.Subscriber, _ interface{}) bool {
		return sub.OwnerType == ownerType &&
			sub.OwnerID == ownerID &&
			sub.TenantID == types.GetTenantID(ctx) &&
			sub.Status != types.StatusDeleted
	}, nil)
	if len(matches) == 0 {
		return nil, ierr.NewError("subscriber not found").
			WithHintf("No subscriber found for %s %s", ownerType, ownerID).
			Mark(ierr.ErrNotFound)
	}
	return copySubscriber(matches[0]), nil
}

func (s *InMemorySubscriberStore) Update(ctx context.Context, sub *subscriber.Subscriber) error {
	if err := s.InMemoryStore.Update(ctx, sub.ID, copySubscriber(sub)); err != nil {
		return ierr.WithError(err).
			WithHintf("Subscriber with ID %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
