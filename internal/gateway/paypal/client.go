package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/config"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// Client implements gateway.Client against the PayPal REST API. There is
// no maintained official PayPal SDK for Go, so calls go through a
// retrying HTTP client with an OAuth2 client-credentials token cached
// until shortly before expiry.
type Client struct {
	config config.PayPalConfig
	http   *retryablehttp.Client
	logger *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new PayPal gateway client
func NewClient(cfg config.PayPalConfig, log *logger.Logger) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.HTTPClient.Timeout = 30 * time.Second
	httpClient.Logger = nil

	return &Client{
		config: cfg,
		http:   httpClient,
		logger: log,
	}
}

func (c *Client) ProviderType() types.PaymentGatewayType {
	return types.PaymentGatewayTypePayPal
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", ierr.WithError(err).Mark(ierr.ErrInternal)
	}
	req.SetBasicAuth(c.config.ClientID, c.config.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Could not reach PayPal").
			Mark(ierr.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Errorw("paypal token request rejected",
			"status", resp.StatusCode,
			"body", string(body))
		return "", ierr.NewError("paypal authentication failed").
			WithHint("PayPal rejected the configured credentials").
			Mark(ierr.ErrNotConfigured)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", ierr.WithError(err).
			WithHint("Malformed PayPal token response").
			Mark(ierr.ErrGatewayUnavailable)
	}

	c.accessToken = token.AccessToken
	// refresh a minute before actual expiry
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

// doJSON performs an authenticated JSON request against the PayPal API and
// decodes the response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrInternal)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrInternal)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not reach PayPal (%s %s)", method, path).
			Mark(ierr.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return ierr.WithError(err).
					WithHint("Malformed PayPal response").
					Mark(ierr.ErrGatewayUnavailable)
			}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ierr.NewError("paypal resource not found").
			WithHintf("PayPal resource not found (%s %s)", method, path).
			Mark(ierr.ErrNotFound)
	case resp.StatusCode >= 500:
		return ierr.NewError("paypal server error").
			WithHintf("PayPal is temporarily unavailable (%s %s)", method, path).
			Mark(ierr.ErrGatewayUnavailable)
	default:
		c.logger.Errorw("paypal request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(respBody))
		return ierr.NewError("paypal request rejected").
			WithHint(paypalErrorMessage(respBody)).
			Mark(ierr.ErrInvalidOperation)
	}
}

func paypalErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return "PayPal rejected the request"
}

func (c *Client) CreateCustomer(ctx context.Context, sub *subscriber.Subscriber) (string, error) {
	// PayPal has no standalone customer object for subscriptions; the
	// payer is attached at approval time. The subscriber's own ID doubles
	// as the gateway customer reference.
	return sub.ID, nil
}

type paypalSubscription struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Quantity    string `json:"quantity"`
	BillingInfo struct {
		NextBillingTime time.Time `json:"next_billing_time"`
		LastPayment     struct {
			Time time.Time `json:"time"`
		} `json:"last_payment"`
	} `json:"billing_info"`
}

func (c *Client) planIDForTier(tier types.SubscriptionTier) (string, error) {
	planID, ok := c.config.PlanIDs[tier.String()]
	if !ok || planID == "" {
		return "", ierr.NewError("no paypal plan configured for tier").
			WithHintf("No PayPal billing plan is configured for tier %s", tier).
			Mark(ierr.ErrNotConfigured)
	}
	return planID, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID string, tier types.SubscriptionTier, quantity int) (*gateway.SubscriptionSnapshot, error) {
	planID, err := c.planIDForTier(tier)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"plan_id":   planID,
		"quantity":  fmt.Sprintf("%d", quantity),
		"custom_id": customerID,
	}

	var sub paypalSubscription
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions", body, &sub); err != nil {
		return nil, err
	}

	return c.subscriptionSnapshot(&sub), nil
}

func (c *Client) UpdateSubscriptionQuantity(ctx context.Context, subscriptionID string, quantity int) (*gateway.SubscriptionSnapshot, error) {
	body := []map[string]any{
		{
			"op":    "replace",
			"path":  "/quantity",
			"value": fmt.Sprintf("%d", quantity),
		},
	}
	path := fmt.Sprintf("/v1/billing/subscriptions/%s", subscriptionID)
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return nil, err
	}
	return c.RetrieveSubscription(ctx, subscriptionID)
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*gateway.SubscriptionSnapshot, error) {
	// PayPal's suspend keeps the agreement until the period runs out;
	// cancel ends it immediately.
	action := "cancel"
	if atPeriodEnd {
		action = "suspend"
	}

	path := fmt.Sprintf("/v1/billing/subscriptions/%s/%s", subscriptionID, action)
	body := map[string]string{"reason": "Requested by subscriber"}
	if err := c.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return nil, err
	}

	return c.RetrieveSubscription(ctx, subscriptionID)
}

func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*gateway.SubscriptionSnapshot, error) {
	var snapshot *gateway.SubscriptionSnapshot
	err := gateway.WithRetry(ctx, func() error {
		var sub paypalSubscription
		path := fmt.Sprintf("/v1/billing/subscriptions/%s", subscriptionID)
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &sub); err != nil {
			return err
		}
		snapshot = c.subscriptionSnapshot(&sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) subscriptionSnapshot(sub *paypalSubscription) *gateway.SubscriptionSnapshot {
	quantity := 1
	if _, err := fmt.Sscanf(sub.Quantity, "%d", &quantity); err != nil {
		quantity = 1
	}

	snapshot := &gateway.SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            strings.ToLower(sub.Status),
		Quantity:          quantity,
		CancelAtPeriodEnd: strings.EqualFold(sub.Status, "SUSPENDED"),
	}
	if !sub.BillingInfo.LastPayment.Time.IsZero() {
		snapshot.CurrentPeriodStart = sub.BillingInfo.LastPayment.Time.UTC()
	}
	if !sub.BillingInfo.NextBillingTime.IsZero() {
		snapshot.CurrentPeriodEnd = sub.BillingInfo.NextBillingTime.UTC()
	}
	return snapshot
}

type paypalOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"purchase_units"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata types.Metadata) (*gateway.PaymentIntentSnapshot, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]string{
					"currency_code": currency,
					"value":         amount.StringFixed(2),
				},
				"custom_id": metadata["invoice_id"],
			},
		},
	}

	var order paypalOrder
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}

	return c.paymentIntentSnapshot(&order), nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*gateway.PaymentIntentSnapshot, error) {
	var snapshot *gateway.PaymentIntentSnapshot
	err := gateway.WithRetry(ctx, func() error {
		var order paypalOrder
		if err := c.doJSON(ctx, http.MethodGet, "/v2/checkout/orders/"+id, nil, &order); err != nil {
			return err
		}
		snapshot = c.paymentIntentSnapshot(&order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) paymentIntentSnapshot(order *paypalOrder) *gateway.PaymentIntentSnapshot {
	status := gateway.PaymentIntentStatusProcessing
	switch order.Status {
	case "COMPLETED":
		status = gateway.PaymentIntentStatusSucceeded
	case "APPROVED", "CREATED", "PAYER_ACTION_REQUIRED":
		status = gateway.PaymentIntentStatusRequiresAction
	case "VOIDED":
		status = gateway.PaymentIntentStatusFailed
	}

	snapshot := &gateway.PaymentIntentSnapshot{
		ID:     order.ID,
		Status: status,
	}
	if len(order.PurchaseUnits) > 0 {
		if amount, err := decimal.NewFromString(order.PurchaseUnits[0].Amount.Value); err == nil {
			snapshot.Amount = amount
		}
		snapshot.Currency = strings.ToLower(order.PurchaseUnits[0].Amount.CurrencyCode)
	}
	return snapshot
}

func (c *Client) ProcessRefund(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal) (string, error) {
	body := map[string]any{
		"amount": map[string]string{
			"value":         amount.StringFixed(2),
			"currency_code": "GBP",
		},
	}

	var refund struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", gatewayTransactionID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &refund); err != nil {
		return "", err
	}

	return refund.ID, nil
}
