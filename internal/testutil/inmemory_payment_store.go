package testutil

import (
	"context"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func (s *InMemoryPaymentStore) SnapshotState() any {
	return s.Snapshot()
}

func (s *InMemoryPaymentStore) RestoreState(snapshot any) {
	s.Restore(snapshot.(map[string]*payment.Payment))
}

func copyPayment(p *payment.Payment) *payment.Payment {
	cp := *p
	return &cp
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	// mirror the unique (invoice_id, gateway_transaction_id) index
	if p.GatewayTransactionID != "" {
		if _, err := s.GetByGatewayTransactionID(ctx, p.InvoiceID, p.GatewayTransactionID); err == nil {
			return ierr.NewError("duplicate payment").
				WithHint("This gateway transaction has already been applied to the invoice").
				Mark(ierr.ErrAlreadyProcessed)
		}
	}
	if err := s.InMemoryStore.Create(ctx, p.ID, copyPayment(p)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || p.TenantID != types.GetTenantID(ctx) || p.Status == types.StatusDeleted {
		return nil, ierr.NewError("payment not found").
			WithHintf("Payment with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(p), nil
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	if err := s.InMemoryStore.Update(ctx, p.ID, copyPayment(p)); err != nil {
		return ierr.WithError(err).
			WithHintf("Payment with ID %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	matches, _ := s.InMemoryStore.List(ctx, filter, func(ctx context.Context, p *payment.Payment, _ interface{}) bool {
		if p.TenantID != types.GetTenantID(ctx) || p.Status == types.StatusDeleted {
			return false
		}
		if filter == nil {
			return true
		}
		if filter.InvoiceID != "" && p.InvoiceID != filter.InvoiceID {
			return false
		}
		if filter.SubscriberID != "" && p.SubscriberID != filter.SubscriberID {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, p.PaymentStatus) {
			return false
		}
		return true
	}, func(i, j *payment.Payment) bool {
		return i.PaymentDate.After(j.PaymentDate)
	})
	return lo.Map(matches, func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	}), nil
}

func (s *InMemoryPaymentStore) GetByGatewayTransactionID(ctx context.Context, invoiceID, gatewayTransactionID string) (*payment.Payment, error) {
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, p *payment.Payment, _ interface{}) bool {
		return p.InvoiceID == invoiceID &&
			p.GatewayTransactionID == gatewayTransactionID &&
			p.TenantID == types.GetTenantID(ctx) &&
			p.Status != types.StatusDeleted
	}, nil)
	if len(matches) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint("No payment found for this gateway transaction").
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(matches[0]), nil
}
