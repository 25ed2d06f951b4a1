package subscriber

import (
	"context"

	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Repository defines the interface for subscriber persistence
type Repository interface {
	Create(ctx context.Context, subscriber *Subscriber) error
	Get(ctx context.Context, id string) (*Subscriber, error)
	GetByOwner(ctx context.Context, ownerType types.SubscriberOwnerType, ownerID string) (*Subscriber, error)
	Update(ctx context.Context, subscriber *Subscriber) error
}
