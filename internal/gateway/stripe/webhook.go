package stripe

import (
	"encoding/json"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyWebhookSignature verifies a Stripe webhook payload and normalizes
// the event. Verification failure is a typed rejection; the caller must
// refuse the webhook rather than continue.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.config.WebhookSecret, options)
	if err != nil {
		c.logger.Errorw("Stripe webhook verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	normalized := &gateway.WebhookEvent{
		ID:   event.ID,
		Type: gateway.EventTypeIgnored,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed payment intent payload").
				Mark(ierr.ErrValidation)
		}
		normalized.GatewayTransactionID = intent.ID
		normalized.InvoiceID = intent.Metadata["invoice_id"]
		if event.Type == "payment_intent.succeeded" {
			normalized.Type = gateway.EventTypePaymentSucceeded
		} else {
			normalized.Type = gateway.EventTypePaymentFailed
			if intent.LastPaymentError != nil {
				normalized.FailureReason = intent.LastPaymentError.Msg
			}
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed subscription payload").
				Mark(ierr.ErrValidation)
		}
		normalized.Type = gateway.EventTypeSubscriptionCancelled
		normalized.SubscriptionID = sub.ID
	}

	return normalized, nil
}
