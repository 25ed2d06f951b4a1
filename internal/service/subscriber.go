package service

import (
	"context"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// SubscriberService manages billing identities. A subscriber is created
// once per owner (user or organisation) and carries the gateway choice
// and the live seat count.
type SubscriberService interface {
	CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) (*subscriber.Subscriber, error)
	GetSubscriber(ctx context.Context, id string) (*subscriber.Subscriber, error)
	GetByOwner(ctx context.Context, ownerType types.SubscriberOwnerType, ownerID string) (*subscriber.Subscriber, error)

	// UpdateSeatCount syncs the billable seat count from the membership
	// domain. The next renewal quotes the new count; mid-cycle proration
	// goes through SubscriptionService.UpdateQuantity.
	UpdateSeatCount(ctx context.Context, id string, activeUserCount int) (*subscriber.Subscriber, error)
}

type subscriberService struct {
	ServiceParams
}

func NewSubscriberService(params ServiceParams) SubscriberService {
	return &subscriberService{
		ServiceParams: params,
	}
}

func (s *subscriberService) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) (*subscriber.Subscriber, error) {
	if sub.ID == "" {
		sub.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER)
	}
	sub.BaseModel = types.GetDefaultBaseModel(ctx)
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.SubscriberRepo.GetByOwner(ctx, sub.OwnerType, sub.OwnerID); err == nil {
		return nil, ierr.NewError("subscriber already exists").
			WithHintf("A subscriber already exists for %s %s", sub.OwnerType, sub.OwnerID).
			WithReportableDetails(map[string]any{"subscriber_id": existing.ID}).
			Mark(ierr.ErrAlreadyProcessed)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	if err := s.SubscriberRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscriber",
		"subscriber_id", sub.ID,
		"owner_type", sub.OwnerType,
		"owner_id", sub.OwnerID,
		"payment_gateway", sub.PaymentGateway,
	)
	return sub, nil
}

func (s *subscriberService) GetSubscriber(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	return s.SubscriberRepo.Get(ctx, id)
}

func (s *subscriberService) GetByOwner(ctx context.Context, ownerType types.SubscriberOwnerType, ownerID string) (*subscriber.Subscriber, error) {
	return s.SubscriberRepo.GetByOwner(ctx, ownerType, ownerID)
}

func (s *subscriberService) UpdateSeatCount(ctx context.Context, id string, activeUserCount int) (*subscriber.Subscriber, error) {
	if activeUserCount < 0 {
		return nil, ierr.NewError("invalid active user count").
			WithHint("Active user count must be non negative").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubscriberRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.ActiveUserCount = activeUserCount
	if err := s.SubscriberRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Debugw("updated subscriber seat count",
		"subscriber_id", sub.ID,
		"active_user_count", activeUserCount,
	)
	return sub, nil
}
