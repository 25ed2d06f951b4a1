package testutil

import (
	"context"
	"sync"

	"github.com/developer-chetaru/tribe365-billing/internal/notification"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

var _ notification.Publisher = (*InMemoryPublisher)(nil)

// PublishedEvent is one captured notification event
type PublishedEvent struct {
	EventName    types.NotificationEventName
	SubscriberID string
	Payload      map[string]any
}

// InMemoryPublisher captures notification events for assertions
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) PublishEvent(ctx context.Context, eventName types.NotificationEventName, subscriberID string, payload map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{
		EventName:    eventName,
		SubscriberID: subscriberID,
		Payload:      payload,
	})
	return nil
}

func (p *InMemoryPublisher) Close() error {
	return nil
}

// Events returns all captured events
func (p *InMemoryPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

// EventsNamed returns captured events matching name
func (p *InMemoryPublisher) EventsNamed(name types.NotificationEventName) []PublishedEvent {
	var matches []PublishedEvent
	for _, event := range p.Events() {
		if event.EventName == name {
			matches = append(matches, event)
		}
	}
	return matches
}

// Reset drops all captured events
func (p *InMemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
