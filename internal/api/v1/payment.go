package v1

import (
	"net/http"

	"github.com/developer-chetaru/tribe365-billing/internal/api/dto"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/service"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, log: log}
}

// @Summary Confirm a gateway payment against an invoice
// @Description Verifies the transaction with the gateway and settles the
// invoice. Replaying the same transaction is rejected with 409.
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payment body dto.ConfirmPaymentRequest true "Gateway transaction"
// @Success 200 {object} service.ConfirmPaymentResult
// @Failure 402 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /invoices/{id}/confirm-payment [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	invoiceID := c.Param("id")
	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.service.ConfirmPayment(c.Request.Context(), invoiceID, req.GatewayTransactionID)
	if err != nil {
		h.log.Errorw("failed to confirm payment", "error", err, "invoice_id", invoiceID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Record a manual bank transfer
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payment body dto.RecordManualPaymentRequest true "Manual payment"
// @Success 201 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /invoices/{id}/manual-payment [post]
func (h *PaymentHandler) RecordManualPayment(c *gin.Context) {
	invoiceID := c.Param("id")
	var req dto.RecordManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	p, err := h.service.RecordManualPayment(c.Request.Context(), invoiceID, req.Amount, req.Notes, req.ProofPath)
	if err != nil {
		h.log.Errorw("failed to record manual payment", "error", err, "invoice_id", invoiceID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.PaymentResponse{Payment: p})
}

// @Summary Confirm a reviewed manual payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} service.ConfirmPaymentResult
// @Failure 409 {object} ierr.ErrorResponse
// @Router /payments/{id}/confirm [post]
func (h *PaymentHandler) ConfirmManualPayment(c *gin.Context) {
	id := c.Param("id")
	result, err := h.service.ConfirmManualPayment(c.Request.Context(), id)
	if err != nil {
		h.log.Errorw("failed to confirm manual payment", "error", err, "payment_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Refund a completed payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id := c.Param("id")
	p, err := h.service.RefundPayment(c.Request.Context(), id)
	if err != nil {
		h.log.Errorw("failed to refund payment", "error", err, "payment_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.PaymentResponse{Payment: p})
}

// @Summary Get a payment by ID
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id := c.Param("id")
	p, err := h.service.GetPayment(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.PaymentResponse{Payment: p})
}

// @Summary List payments
// @Tags Payments
// @Produce json
// @Param invoice_id query string false "Filter by invoice"
// @Param subscriber_id query string false "Filter by subscriber"
// @Success 200 {object} dto.ListPaymentsResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	var filter types.PaymentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	payments, err := h.service.ListPayments(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListPaymentsResponse(payments))
}
