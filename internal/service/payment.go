package service

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

// ConfirmPaymentResult reports the state everything landed in after a
// confirmation was applied.
type ConfirmPaymentResult struct {
	Payment            *payment.Payment         `json:"payment"`
	InvoiceID          string                   `json:"invoice_id"`
	InvoiceStatus      types.InvoiceStatus      `json:"invoice_status"`
	SubscriptionID     string                   `json:"subscription_id"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status"`
}

// PaymentService reconciles inbound payment confirmations against
// invoices. Confirmation is idempotent on (invoice, gateway transaction):
// the second application of the same transaction is rejected with
// ErrAlreadyProcessed and leaves state unchanged.
type PaymentService interface {
	// ConfirmPayment verifies the gateway-side transaction succeeded and
	// atomically records the payment, marks the invoice paid and advances
	// the subscription.
	ConfirmPayment(ctx context.Context, invoiceID, gatewayTransactionID string) (*ConfirmPaymentResult, error)

	// RecordManualPayment records a bank transfer awaiting admin review.
	// The invoice stays open until the payment is confirmed.
	RecordManualPayment(ctx context.Context, invoiceID string, amount decimal.Decimal, notes string, proofPath *string) (*payment.Payment, error)

	// ConfirmManualPayment settles an invoice from a reviewed manual
	// payment
	ConfirmManualPayment(ctx context.Context, paymentID string) (*ConfirmPaymentResult, error)

	// RefundPayment refunds a completed payment through the gateway and
	// marks it refunded
	RefundPayment(ctx context.Context, paymentID string) (*payment.Payment, error)

	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error)
}

type paymentService struct {
	ServiceParams
	subscriptionService SubscriptionService
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams:       params,
		subscriptionService: NewSubscriptionService(params),
	}
}

func (s *paymentService) ConfirmPayment(ctx context.Context, invoiceID, gatewayTransactionID string) (*ConfirmPaymentResult, error) {
	if gatewayTransactionID == "" {
		return nil, ierr.NewError("gateway transaction id is required").
			WithHint("Gateway transaction id is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if _, err := s.PaymentRepo.GetByGatewayTransactionID(ctx, invoiceID, gatewayTransactionID); err == nil {
		return nil, ierr.NewError("payment already processed").
			WithHintf("Transaction %s has already been applied to invoice %s", gatewayTransactionID, inv.InvoiceNumber).
			Mark(ierr.ErrAlreadyProcessed)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	subscriber, err := s.SubscriberRepo.Get(ctx, inv.SubscriberID)
	if err != nil {
		return nil, err
	}
	client, err := s.GatewayFactory.GetClient(subscriber.PaymentGateway)
	if err != nil {
		return nil, err
	}

	// verify with the gateway before any local write; a transport failure
	// here must leave no trace
	gatewayCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	intent, err := client.RetrievePaymentIntent(gatewayCtx, gatewayTransactionID)
	if err != nil {
		return nil, err
	}
	if intent.Status != gateway.PaymentIntentStatusSucceeded {
		return nil, ierr.NewError("payment has not succeeded").
			WithHintf("Gateway reports transaction %s as %s", gatewayTransactionID, intent.Status).
			WithReportableDetails(map[string]any{
				"gateway_transaction_id": gatewayTransactionID,
				"gateway_status":         intent.Status,
			}).
			Mark(ierr.ErrPaymentNotConfirmed)
	}

	return s.settleInvoice(ctx, inv, &payment.Payment{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:            inv.ID,
		SubscriberID:         inv.SubscriberID,
		PaymentMethod:        paymentMethodForGateway(subscriber.PaymentGateway),
		Amount:               inv.TotalAmount,
		Currency:             inv.Currency,
		GatewayTransactionID: gatewayTransactionID,
		PaymentStatus:        types.PaymentStatusCompleted,
		PaymentDate:          time.Now().UTC(),
		BaseModel:            types.GetDefaultBaseModel(ctx),
	})
}

// settleInvoice applies a completed payment, marks the invoice paid and
// advances the subscription, all inside one transaction.
func (s *paymentService) settleInvoice(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) (*ConfirmPaymentResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	paidAt := p.PaymentDate
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.PaymentRepo.Create(txCtx, p); err != nil {
			return err
		}
		if err := inv.MarkPaid(paidAt); err != nil {
			return err
		}
		if err := s.InvoiceRepo.Update(txCtx, inv); err != nil {
			return err
		}

		var err error
		sub, err = s.subscriptionService.MarkPaymentSucceeded(txCtx, inv.SubscriptionID, paidAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.Publisher.PublishEvent(ctx, types.NotificationEventPaymentConfirmed, inv.SubscriberID, map[string]any{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"payment_id":     p.ID,
		"amount":         p.Amount,
	}); err != nil {
		s.Logger.Errorw("failed to publish payment confirmation event",
			"error", err, "invoice_id", inv.ID)
	}

	s.Logger.Infow("confirmed payment",
		"payment_id", p.ID,
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", sub.ID,
		"amount", p.Amount,
	)

	return &ConfirmPaymentResult{
		Payment:            p,
		InvoiceID:          inv.ID,
		InvoiceStatus:      inv.InvoiceStatus,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: sub.SubscriptionStatus,
	}, nil
}

func (s *paymentService) RecordManualPayment(ctx context.Context, invoiceID string, amount decimal.Decimal, notes string, proofPath *string) (*payment.Payment, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.InvoiceStatus.IsPayable() {
		return nil, ierr.NewError("invoice is not payable").
			WithHintf("Invoice %s is %s", inv.InvoiceNumber, inv.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	p := &payment.Payment{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:     inv.ID,
		SubscriberID:  inv.SubscriberID,
		PaymentMethod: types.PaymentMethodTypeBankTransfer,
		Amount:        amount,
		Currency:      inv.Currency,
		PaymentStatus: types.PaymentStatusPending,
		PaymentDate:   time.Now().UTC(),
		Notes:         notes,
		ProofPath:     proofPath,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded manual payment",
		"payment_id", p.ID,
		"invoice_id", inv.ID,
		"amount", amount,
	)
	return p, nil
}

func (s *paymentService) ConfirmManualPayment(ctx context.Context, paymentID string) (*ConfirmPaymentResult, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus != types.PaymentStatusPending {
		return nil, ierr.NewError("payment is not pending").
			WithHintf("Payment %s is %s", p.ID, p.PaymentStatus).
			Mark(ierr.ErrAlreadyProcessed)
	}

	inv, err := s.InvoiceRepo.Get(ctx, p.InvoiceID)
	if err != nil {
		return nil, err
	}

	paidAt := time.Now().UTC()
	var sub *subscription.Subscription
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		p.PaymentStatus = types.PaymentStatusCompleted
		if err := s.PaymentRepo.Update(txCtx, p); err != nil {
			return err
		}
		if err := inv.MarkPaid(paidAt); err != nil {
			return err
		}
		if err := s.InvoiceRepo.Update(txCtx, inv); err != nil {
			return err
		}

		var err error
		sub, err = s.subscriptionService.MarkPaymentSucceeded(txCtx, inv.SubscriptionID, paidAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.Publisher.PublishEvent(ctx, types.NotificationEventPaymentConfirmed, inv.SubscriberID, map[string]any{
		"invoice_id": inv.ID,
		"payment_id": p.ID,
		"amount":     p.Amount,
	}); err != nil {
		s.Logger.Errorw("failed to publish payment confirmation event",
			"error", err, "invoice_id", inv.ID)
	}

	return &ConfirmPaymentResult{
		Payment:            p,
		InvoiceID:          inv.ID,
		InvoiceStatus:      inv.InvoiceStatus,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: sub.SubscriptionStatus,
	}, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus != types.PaymentStatusCompleted {
		return nil, ierr.NewError("payment cannot be refunded").
			WithHintf("Only completed payments can be refunded, payment %s is %s", p.ID, p.PaymentStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	if p.GatewayTransactionID == "" {
		return nil, ierr.NewError("payment has no gateway transaction").
			WithHint("Manual payments cannot be refunded through a gateway").
			Mark(ierr.ErrNotConfigured)
	}

	subscriber, err := s.SubscriberRepo.Get(ctx, p.SubscriberID)
	if err != nil {
		return nil, err
	}
	client, err := s.GatewayFactory.GetClient(subscriber.PaymentGateway)
	if err != nil {
		return nil, err
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	refundID, err := client.ProcessRefund(gatewayCtx, p.GatewayTransactionID, p.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.PaymentStatus = types.PaymentStatusRefunded
	p.RefundedAt = &now
	if p.Notes != "" {
		p.Notes += "; "
	}
	p.Notes += "refund " + refundID
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("refunded payment",
		"payment_id", p.ID,
		"refund_id", refundID,
		"amount", p.Amount,
	)
	return p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.PaymentRepo.Get(ctx, id)
}

func (s *paymentService) ListPayments(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	return s.PaymentRepo.List(ctx, filter)
}

func paymentMethodForGateway(g types.PaymentGatewayType) types.PaymentMethodType {
	if g == types.PaymentGatewayTypePayPal {
		return types.PaymentMethodTypePayPal
	}
	return types.PaymentMethodTypeCard
}
