package stripe

import (
	"context"
	"net"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/config"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// Client implements gateway.Client against the Stripe API. Credentials are
// injected once at construction and never mutated per call.
type Client struct {
	sc     *stripe.Client
	config config.StripeConfig
	logger *logger.Logger
}

// NewClient creates a new Stripe gateway client
func NewClient(cfg config.StripeConfig, log *logger.Logger) *Client {
	return &Client{
		sc:     stripe.NewClient(cfg.SecretKey, nil),
		config: cfg,
		logger: log,
	}
}

func (c *Client) ProviderType() types.PaymentGatewayType {
	return types.PaymentGatewayTypeStripe
}

// translateErr maps Stripe SDK errors into the shared taxonomy so that no
// stripe-specific error type leaks to callers.
func (c *Client) translateErr(err error, op string) error {
	if err == nil {
		return nil
	}

	if stripeErr, ok := err.(*stripe.Error); ok {
		switch stripeErr.Type {
		case stripe.ErrorTypeAPI:
			return ierr.WithError(err).
				WithHintf("Stripe is temporarily unavailable (%s)", op).
				Mark(ierr.ErrGatewayUnavailable)
		case stripe.ErrorTypeInvalidRequest:
			if stripeErr.Code == stripe.ErrorCodeResourceMissing {
				return ierr.WithError(err).
					WithHintf("Stripe resource not found (%s)", op).
					Mark(ierr.ErrNotFound)
			}
			return ierr.WithError(err).
				WithHint(stripeErr.Msg).
				Mark(ierr.ErrValidation)
		case stripe.ErrorTypeCard:
			return ierr.WithError(err).
				WithHint(stripeErr.Msg).
				Mark(ierr.ErrPaymentNotConfirmed)
		}
		return ierr.WithError(err).
			WithHint(stripeErr.Msg).
			Mark(ierr.ErrInvalidOperation)
	}

	// non-API errors are transport level
	if _, ok := err.(net.Error); ok {
		return ierr.WithError(err).
			WithHintf("Could not reach Stripe (%s)", op).
			Mark(ierr.ErrGatewayUnavailable)
	}
	return ierr.WithError(err).
		WithHintf("Could not reach Stripe (%s)", op).
		Mark(ierr.ErrGatewayUnavailable)
}

func (c *Client) CreateCustomer(ctx context.Context, sub *subscriber.Subscriber) (string, error) {
	params := &stripe.CustomerCreateParams{
		Name:  stripe.String(sub.Name),
		Email: stripe.String(sub.Email),
		Metadata: map[string]string{
			"tribe365_subscriber_id": sub.ID,
			"owner_type":             sub.OwnerType.String(),
			"owner_id":               sub.OwnerID,
		},
	}

	customer, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create customer in Stripe",
			"error", err,
			"subscriber_id", sub.ID)
		return "", c.translateErr(err, "create customer")
	}

	return customer.ID, nil
}

func (c *Client) priceIDForTier(tier types.SubscriptionTier) (string, error) {
	priceID, ok := c.config.PriceIDs[tier.String()]
	if !ok || priceID == "" {
		return "", ierr.NewError("no stripe price configured for tier").
			WithHintf("No Stripe price is configured for tier %s", tier).
			Mark(ierr.ErrNotConfigured)
	}
	return priceID, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID string, tier types.SubscriptionTier, quantity int) (*gateway.SubscriptionSnapshot, error) {
	priceID, err := c.priceIDForTier(tier)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(int64(quantity)),
			},
		},
		Metadata: map[string]string{
			"tier": tier.String(),
		},
	}

	sub, err := c.sc.V1Subscriptions.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create subscription in Stripe",
			"error", err,
			"customer_id", customerID,
			"tier", tier)
		return nil, c.translateErr(err, "create subscription")
	}

	return subscriptionSnapshot(sub), nil
}

func (c *Client) UpdateSubscriptionQuantity(ctx context.Context, subscriptionID string, quantity int) (*gateway.SubscriptionSnapshot, error) {
	existing, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, c.translateErr(err, "retrieve subscription")
	}
	if len(existing.Items.Data) == 0 {
		return nil, ierr.NewError("stripe subscription has no items").
			WithHint("Subscription has no billable items on Stripe").
			Mark(ierr.ErrInvalidOperation)
	}

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:       stripe.String(existing.Items.Data[0].ID),
				Quantity: stripe.Int64(int64(quantity)),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}

	sub, err := c.sc.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		c.logger.Errorw("failed to update subscription quantity in Stripe",
			"error", err,
			"subscription_id", subscriptionID,
			"quantity", quantity)
		return nil, c.translateErr(err, "update subscription quantity")
	}

	return subscriptionSnapshot(sub), nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*gateway.SubscriptionSnapshot, error) {
	if atPeriodEnd {
		params := &stripe.SubscriptionUpdateParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		sub, err := c.sc.V1Subscriptions.Update(ctx, subscriptionID, params)
		if err != nil {
			return nil, c.translateErr(err, "cancel subscription at period end")
		}
		return subscriptionSnapshot(sub), nil
	}

	sub, err := c.sc.V1Subscriptions.Cancel(ctx, subscriptionID, nil)
	if err != nil {
		return nil, c.translateErr(err, "cancel subscription")
	}
	return subscriptionSnapshot(sub), nil
}

func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionSnapshot, error) {
	var snapshot *gateway.SubscriptionSnapshot
	err := gateway.WithRetry(ctx, func() error {
		sub, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
		if err != nil {
			return c.translateErr(err, "retrieve subscription")
		}
		snapshot = subscriptionSnapshot(sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata types.Metadata) (*gateway.PaymentIntentSnapshot, error) {
	amountInMinorUnits := amount.Mul(decimal.NewFromInt(100)).IntPart()
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amountInMinorUnits),
		Currency: stripe.String(currency),
		Metadata: metadata,
	}

	intent, err := c.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create payment intent in Stripe",
			"error", err,
			"amount", amount.String(),
			"currency", currency)
		return nil, c.translateErr(err, "create payment intent")
	}

	return paymentIntentSnapshot(intent), nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntentSnapshot, error) {
	var snapshot *gateway.PaymentIntentSnapshot
	err := gateway.WithRetry(ctx, func() error {
		intent, err := c.sc.V1PaymentIntents.Retrieve(ctx, id, nil)
		if err != nil {
			return c.translateErr(err, "retrieve payment intent")
		}
		snapshot = paymentIntentSnapshot(intent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) ProcessRefund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal) (string, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(gatewayTransactionID),
		Amount:        stripe.Int64(amount.Mul(decimal.NewFromInt(100)).IntPart()),
	}

	refund, err := c.sc.V1Refunds.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create refund in Stripe",
			"error", err,
			"gateway_transaction_id", gatewayTransactionID)
		return "", c.translateErr(err, "process refund")
	}

	return refund.ID, nil
}

func subscriptionSnapshot(sub *stripe.Subscription) *gateway.SubscriptionSnapshot {
	snapshot := &gateway.SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		snapshot.Quantity = int(item.Quantity)
		snapshot.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		snapshot.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return snapshot
}

func paymentIntentSnapshot(intent *stripe.PaymentIntent) *gateway.PaymentIntentSnapshot {
	status := gateway.PaymentIntentStatusProcessing
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = gateway.PaymentIntentStatusSucceeded
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod:
		status = gateway.PaymentIntentStatusRequiresAction
	case stripe.PaymentIntentStatusCanceled:
		status = gateway.PaymentIntentStatusFailed
	}

	return &gateway.PaymentIntentSnapshot{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       status,
		Amount:       decimal.NewFromInt(intent.Amount).Div(decimal.NewFromInt(100)),
		Currency:     string(intent.Currency),
	}
}
