package service

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

// InvoiceService generates and manages billing documents. Generation is
// idempotent per (subscriber, subscription, billing date): calling it twice
// for the same cycle returns the first invoice unchanged.
type InvoiceService interface {
	GenerateInvoice(ctx context.Context, sub *subscription.Subscription, billingDate time.Time) (*invoice.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error)

	// MarkOverdue flips pending invoices past their due date to overdue
	// and returns the invoices it transitioned
	MarkOverdue(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error)

	// CancelPending cancels all open invoices of a subscription, used when
	// the subscription itself terminates
	CancelPending(ctx context.Context, subscriptionID string) error
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) GenerateInvoice(ctx context.Context, sub *subscription.Subscription, billingDate time.Time) (*invoice.Invoice, error) {
	if sub == nil {
		return nil, ierr.NewError("subscription is required").
			WithHint("Subscription is required").
			Mark(ierr.ErrValidation)
	}

	billingDate = types.BeginningOfDay(billingDate)

	// fast path: the invoice for this cycle already exists
	existing, err := s.InvoiceRepo.GetByBillingDate(ctx, sub.SubscriberID, sub.ID, billingDate)
	if err == nil {
		s.Logger.Debugw("invoice already generated for billing date",
			"invoice_id", existing.ID,
			"subscription_id", sub.ID,
			"billing_date", billingDate,
		)
		return existing, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	pricePerUser, ok := s.Config.Billing.PricePerUser(sub.Tier)
	if !ok {
		return nil, ierr.NewError("no price configured for tier").
			WithHintf("No price is configured for tier %s", sub.Tier).
			Mark(ierr.ErrNotConfigured)
	}

	subtotal := pricePerUser.Mul(decimal.NewFromInt(int64(sub.UserCount))).Round(2)
	taxAmount := subtotal.Mul(s.Config.Billing.TaxRate).Round(2)
	totalAmount := subtotal.Add(taxAmount)

	var inv *invoice.Invoice
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		yearMonth := types.InvoiceYearMonth(billingDate)
		seq, err := s.InvoiceRepo.NextSequenceValue(txCtx, yearMonth)
		if err != nil {
			return err
		}

		inv = &invoice.Invoice{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
			SubscriptionID: sub.ID,
			SubscriberID:   sub.SubscriberID,
			InvoiceNumber:  types.FormatInvoiceNumber(yearMonth, seq),
			InvoiceDate:    billingDate,
			DueDate:        billingDate.AddDate(0, 0, s.Config.Billing.InvoiceDueDays),
			UserCount:      sub.UserCount,
			PricePerUser:   pricePerUser,
			Currency:       s.Config.Billing.Currency,
			Subtotal:       subtotal,
			TaxAmount:      taxAmount,
			TotalAmount:    totalAmount,
			InvoiceStatus:  types.InvoiceStatusPending,
			BaseModel:      types.GetDefaultBaseModel(txCtx),
		}
		if err := inv.Validate(); err != nil {
			return err
		}
		return s.InvoiceRepo.Create(txCtx, inv)
	})
	if err != nil {
		// a concurrent generator won the race; hand back its invoice
		if ierr.IsAlreadyProcessed(err) {
			return s.InvoiceRepo.GetByBillingDate(ctx, sub.SubscriberID, sub.ID, billingDate)
		}
		return nil, err
	}

	s.Logger.Infow("generated invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", sub.ID,
		"total_amount", inv.TotalAmount,
	)
	return inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.Get(ctx, id)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	return s.InvoiceRepo.List(ctx, filter)
}

func (s *invoiceService) MarkOverdue(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	pending, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		Statuses:  []types.InvoiceStatus{types.InvoiceStatusPending},
		DueBefore: &asOf,
	})
	if err != nil {
		return nil, err
	}

	transitioned := make([]*invoice.Invoice, 0, len(pending))
	for _, inv := range pending {
		inv.InvoiceStatus = types.InvoiceStatusOverdue
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return transitioned, err
		}
		s.Logger.Infow("marked invoice overdue",
			"invoice_id", inv.ID,
			"invoice_number", inv.InvoiceNumber,
			"due_date", inv.DueDate,
		)
		transitioned = append(transitioned, inv)
	}
	return transitioned, nil
}

func (s *invoiceService) CancelPending(ctx context.Context, subscriptionID string) error {
	open, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		SubscriptionID: subscriptionID,
		Statuses:       []types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusOverdue},
	})
	if err != nil {
		return err
	}

	for _, inv := range open {
		inv.InvoiceStatus = types.InvoiceStatusCancelled
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}
