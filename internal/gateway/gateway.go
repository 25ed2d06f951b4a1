package gateway

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

// SubscriptionSnapshot is the typed view of a gateway-side subscription.
// Adapters populate it from their SDK objects so business logic never
// touches gateway-specific types or optional-field chains.
type SubscriptionSnapshot struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	Quantity           int       `json:"quantity"`
	CancelAtPeriodEnd  bool      `json:"cancel_at_period_end"`
}

// PaymentIntentStatus is the normalized status of a gateway payment intent
type PaymentIntentStatus string

const (
	PaymentIntentStatusSucceeded      PaymentIntentStatus = "succeeded"
	PaymentIntentStatusProcessing     PaymentIntentStatus = "processing"
	PaymentIntentStatusRequiresAction PaymentIntentStatus = "requires_action"
	PaymentIntentStatusFailed         PaymentIntentStatus = "failed"
)

// PaymentIntentSnapshot is the typed view of a gateway-side payment
// intent or order.
type PaymentIntentSnapshot struct {
	ID           string              `json:"id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	Status       PaymentIntentStatus `json:"status"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
}

// EventType is the normalized webhook event type shared by all gateways
type EventType string

const (
	EventTypePaymentSucceeded      EventType = "payment.succeeded"
	EventTypePaymentFailed         EventType = "payment.failed"
	EventTypeSubscriptionCancelled EventType = "subscription.cancelled"
	EventTypeIgnored               EventType = "ignored"
)

// WebhookEvent is a verified, normalized inbound gateway event.
type WebhookEvent struct {
	ID                   string    `json:"id"`
	Type                 EventType `json:"type"`
	GatewayTransactionID string    `json:"gateway_transaction_id,omitempty"`
	InvoiceID            string    `json:"invoice_id,omitempty"`
	SubscriptionID       string    `json:"subscription_id,omitempty"`
	FailureReason        string    `json:"failure_reason,omitempty"`
}

// Client is the single interface over payment gateway capabilities. Two
// implementations exist (Stripe, PayPal), selected per subscriber by the
// factory; business logic never branches on gateway type.
//
// Adapters translate transport failures to ErrGatewayUnavailable and API
// rejections to the caller-facing taxonomy; gateway SDK error types must
// not leak past this interface.
type Client interface {
	ProviderType() types.PaymentGatewayType

	CreateCustomer(ctx context.Context, sub *subscriber.Subscriber) (string, error)
	CreateSubscription(ctx context.Context, customerID string, tier types.SubscriptionTier, quantity int) (*SubscriptionSnapshot, error)
	UpdateSubscriptionQuantity(ctx context.Context, subscriptionID string, quantity int) (*SubscriptionSnapshot, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*SubscriptionSnapshot, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)

	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata types.Metadata) (*PaymentIntentSnapshot, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntentSnapshot, error)
	ProcessRefund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal) (string, error)

	// VerifyWebhookSignature verifies and parses an inbound webhook. A
	// failed verification is a typed rejection the caller must handle by
	// refusing the webhook, never by logging and continuing.
	VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error)
}
