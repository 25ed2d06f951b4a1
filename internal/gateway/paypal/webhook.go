package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
)

// SignatureHeaders carries the PayPal transmission headers the webhook
// handler extracts from the inbound request. They travel to the adapter
// JSON-encoded as the opaque signature string, since verification needs
// all of them together.
type SignatureHeaders struct {
	TransmissionID   string `json:"transmission_id"`
	TransmissionTime string `json:"transmission_time"`
	TransmissionSig  string `json:"transmission_sig"`
	CertURL          string `json:"cert_url"`
	AuthAlgo         string `json:"auth_algo"`
}

// EncodeSignatureHeaders packs PayPal transmission headers from an inbound
// request into the signature string VerifyWebhookSignature expects.
func EncodeSignatureHeaders(h http.Header) string {
	headers := SignatureHeaders{
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
	}
	encoded, _ := json.Marshal(headers)
	return string(encoded)
}

type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type webhookResource struct {
	ID            string `json:"id"`
	CustomID      string `json:"custom_id"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	BillingAgreementID string `json:"billing_agreement_id"`
}

// VerifyWebhookSignature verifies the event against PayPal's
// verify-webhook-signature endpoint and normalizes it. Cryptographic
// verification of the transmission signature is not possible offline, so
// this round-trips to PayPal as their integration guide prescribes.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	if c.config.WebhookID == "" {
		return nil, ierr.NewError("paypal webhook id not configured").
			WithHint("Set the PayPal webhook ID before accepting webhooks").
			Mark(ierr.ErrNotConfigured)
	}

	var headers SignatureHeaders
	if err := json.Unmarshal([]byte(signature), &headers); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Missing or malformed PayPal transmission headers").
			Mark(ierr.ErrValidation)
	}

	body := map[string]any{
		"transmission_id":   headers.TransmissionID,
		"transmission_time": headers.TransmissionTime,
		"transmission_sig":  headers.TransmissionSig,
		"cert_url":          headers.CertURL,
		"auth_algo":         headers.AuthAlgo,
		"webhook_id":        c.config.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &result); err != nil {
		return nil, err
	}
	if result.VerificationStatus != "SUCCESS" {
		return nil, ierr.NewError("paypal webhook signature verification failed").
			WithHint("The webhook payload does not match its signature").
			Mark(ierr.ErrValidation)
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed PayPal webhook payload").
			Mark(ierr.ErrValidation)
	}

	return c.normalizeEvent(&event), nil
}

func (c *Client) normalizeEvent(event *webhookEvent) *gateway.WebhookEvent {
	normalized := &gateway.WebhookEvent{
		ID:   event.ID,
		Type: gateway.EventTypeIgnored,
	}

	var resource webhookResource
	if len(event.Resource) > 0 {
		if err := json.Unmarshal(event.Resource, &resource); err != nil {
			c.logger.Warnw("unparseable paypal webhook resource",
				"event_id", event.ID,
				"event_type", event.EventType)
			return normalized
		}
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.SALE.COMPLETED":
		normalized.Type = gateway.EventTypePaymentSucceeded
		normalized.GatewayTransactionID = resource.ID
		normalized.InvoiceID = resource.CustomID
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.SALE.DENIED":
		normalized.Type = gateway.EventTypePaymentFailed
		normalized.GatewayTransactionID = resource.ID
		normalized.InvoiceID = resource.CustomID
		normalized.FailureReason = resource.StatusDetails.Reason
		if normalized.FailureReason == "" {
			normalized.FailureReason = "payment denied"
		}
	case "BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.EXPIRED":
		normalized.Type = gateway.EventTypeSubscriptionCancelled
		normalized.SubscriptionID = resource.ID
	default:
		c.logger.Debugw("ignoring paypal webhook event",
			"event_id", event.ID,
			"event_type", event.EventType)
	}

	return normalized
}
