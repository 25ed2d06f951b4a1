// Package notification publishes billing lifecycle events to the
// notification topic. Delivery (email templates, in-app messages) is
// owned by a downstream consumer; the billing core only emits the event.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/developer-chetaru/tribe365-billing/internal/config"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/pubsub"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// Publisher interface for producing notification events
type Publisher interface {
	PublishEvent(ctx context.Context, eventName types.NotificationEventName, subscriberID string, payload map[string]any) error
	Close() error
}

type notificationPublisher struct {
	pubSub pubsub.PubSub
	config *config.NotificationConfig
	logger *logger.Logger
}

func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) Publisher {
	return &notificationPublisher{
		pubSub: pubSub,
		config: &cfg.Notification,
		logger: logger,
	}
}

func (p *notificationPublisher) PublishEvent(ctx context.Context, eventName types.NotificationEventName, subscriberID string, payload map[string]any) error {
	event := &types.NotificationEvent{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION_EVENT),
		EventName:    eventName,
		TenantID:     types.GetTenantID(ctx),
		SubscriberID: subscriberID,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode notification event").
			Mark(ierr.ErrInternal)
	}

	msg := message.NewMessage(event.ID, body)
	msg.Metadata.Set("tenant_id", event.TenantID)
	msg.Metadata.Set("event_name", event.EventName.String())

	p.logger.Debugw("publishing notification event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"subscriber_id", subscriberID,
		"topic", p.config.Topic,
	)

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish notification event",
			"error", err,
			"event_id", event.ID,
			"event_name", event.EventName,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish notification event").
			Mark(ierr.ErrInternal)
	}
	return nil
}

func (p *notificationPublisher) Close() error {
	return p.pubSub.Close()
}
