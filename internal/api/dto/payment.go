package dto

import (
	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/shopspring/decimal"
)

// ConfirmPaymentRequest reconciles a gateway-side transaction against an
// invoice.
type ConfirmPaymentRequest struct {
	GatewayTransactionID string `json:"gateway_transaction_id" binding:"required"`
}

// RecordManualPaymentRequest records a bank transfer awaiting review
type RecordManualPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Notes     string          `json:"notes"`
	ProofPath *string         `json:"proof_path,omitempty"`
}

func (r *RecordManualPaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	*payment.Payment
}

// ListPaymentsResponse is a list of payments
type ListPaymentsResponse struct {
	Items []*PaymentResponse `json:"items"`
	Total int                `json:"total"`
}

func NewListPaymentsResponse(payments []*payment.Payment) *ListPaymentsResponse {
	items := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, &PaymentResponse{Payment: p})
	}
	return &ListPaymentsResponse{Items: items, Total: len(items)}
}
