package service

import (
	"context"
	"time"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// WebhookResult reports how an inbound gateway event was applied.
type WebhookResult struct {
	EventID   string            `json:"event_id"`
	EventType gateway.EventType `json:"event_type"`
	Handled   bool              `json:"handled"`
}

// WebhookService verifies inbound gateway webhooks and applies them to
// local state. Handling is idempotent: gateways redeliver, so a replayed
// payment confirmation or cancellation lands as a no-op.
type WebhookService interface {
	HandleWebhook(ctx context.Context, provider types.PaymentGatewayType, payload []byte, signature string) (*WebhookResult, error)
}

type webhookService struct {
	ServiceParams
	paymentService      PaymentService
	subscriptionService SubscriptionService
	invoiceService      InvoiceService
}

func NewWebhookService(params ServiceParams) WebhookService {
	return &webhookService{
		ServiceParams:       params,
		paymentService:      NewPaymentService(params),
		subscriptionService: NewSubscriptionService(params),
		invoiceService:      NewInvoiceService(params),
	}
}

func (s *webhookService) HandleWebhook(ctx context.Context, provider types.PaymentGatewayType, payload []byte, signature string) (*WebhookResult, error) {
	client, err := s.GatewayFactory.GetClient(provider)
	if err != nil {
		return nil, err
	}

	event, err := client.VerifyWebhookSignature(payload, signature)
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: event.Type,
	}

	switch event.Type {
	case gateway.EventTypePaymentSucceeded:
		err = s.handlePaymentSucceeded(ctx, event)
	case gateway.EventTypePaymentFailed:
		err = s.handlePaymentFailed(ctx, event)
	case gateway.EventTypeSubscriptionCancelled:
		err = s.handleSubscriptionCancelled(ctx, event)
	case gateway.EventTypeIgnored:
		s.Logger.Debugw("ignoring webhook event",
			"provider", provider, "event_id", event.ID)
		return result, nil
	default:
		return result, nil
	}
	if err != nil {
		return result, err
	}

	result.Handled = true
	s.Logger.Infow("handled webhook event",
		"provider", provider,
		"event_id", event.ID,
		"event_type", event.Type,
	)
	return result, nil
}

func (s *webhookService) handlePaymentSucceeded(ctx context.Context, event *gateway.WebhookEvent) error {
	if event.InvoiceID == "" {
		// charges made outside a billing cycle carry no invoice reference
		s.Logger.Warnw("payment webhook without invoice reference",
			"event_id", event.ID,
			"gateway_transaction_id", event.GatewayTransactionID,
		)
		return nil
	}

	_, err := s.paymentService.ConfirmPayment(ctx, event.InvoiceID, event.GatewayTransactionID)
	if ierr.IsAlreadyProcessed(err) {
		// redelivery of a confirmation we already applied
		s.Logger.Debugw("webhook payment already applied",
			"event_id", event.ID, "invoice_id", event.InvoiceID)
		return nil
	}
	return err
}

func (s *webhookService) handlePaymentFailed(ctx context.Context, event *gateway.WebhookEvent) error {
	if event.InvoiceID == "" {
		s.Logger.Warnw("payment failure webhook without invoice reference",
			"event_id", event.ID)
		return nil
	}

	inv, err := s.InvoiceRepo.Get(ctx, event.InvoiceID)
	if err != nil {
		return err
	}
	reason := event.FailureReason
	if reason == "" {
		reason = "payment failed"
	}
	_, err = s.subscriptionService.RecordPaymentFailure(ctx, inv.SubscriptionID, &inv.ID, reason)
	return err
}

// handleSubscriptionCancelled syncs a cancellation that originated on the
// gateway side. The gateway already terminated billing, so only local
// state moves.
func (s *webhookService) handleSubscriptionCancelled(ctx context.Context, event *gateway.WebhookEvent) error {
	if event.SubscriptionID == "" {
		return nil
	}

	sub, err := s.SubRepo.GetByGatewaySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("cancellation webhook for unknown subscription",
				"event_id", event.ID,
				"gateway_subscription_id", event.SubscriptionID,
			)
			return nil
		}
		return err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil
	}

	now := time.Now().UTC()
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := sub.TransitionTo(types.SubscriptionStatusCanceled); err != nil {
			return err
		}
		sub.CanceledAt = &now
		sub.NextBillingDate = nil
		if err := s.invoiceService.CancelPending(txCtx, sub.ID); err != nil {
			return err
		}
		return s.SubRepo.Update(txCtx, sub)
	})
	if err != nil {
		return err
	}

	if err := s.Publisher.PublishEvent(ctx, types.NotificationEventSubscriptionCancelled, sub.SubscriberID, map[string]any{
		"subscription_id": sub.ID,
		"source":          "gateway",
	}); err != nil {
		s.Logger.Errorw("failed to publish cancellation event",
			"error", err, "subscription_id", sub.ID)
	}
	return nil
}
