package v1

import (
	"io"
	"net/http"

	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway/paypal"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/service"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	service service.WebhookService
	log     *logger.Logger
}

func NewWebhookHandler(service service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// @Summary Receive a payment gateway webhook
// @Description Verifies the gateway signature and applies the event.
// Unverifiable payloads are rejected with 400; a verified event that was
// already applied returns 200.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Gateway provider (stripe or paypal)"
// @Success 200 {object} service.WebhookResult
// @Failure 400 {object} ierr.ErrorResponse
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := types.PaymentGatewayType(c.Param("provider"))
	if err := provider.Validate(); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Unknown payment gateway").
			Mark(ierr.ErrValidation))
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.service.HandleWebhook(c.Request.Context(), provider, payload, h.signatureFor(provider, c))
	if err != nil {
		h.log.Errorw("failed to handle webhook",
			"error", err, "provider", provider)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// signatureFor extracts the provider's signature material from the
// request. Stripe signs into a single header; PayPal spreads verification
// input over several, packed here for the verification API call.
func (h *WebhookHandler) signatureFor(provider types.PaymentGatewayType, c *gin.Context) string {
	switch provider {
	case types.PaymentGatewayTypePayPal:
		return paypal.EncodeSignatureHeaders(c.Request.Header)
	default:
		return c.GetHeader("Stripe-Signature")
	}
}
