package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository, including the
// per-month number sequence.
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	seqMu     sync.Mutex
	sequences map[string]int64
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
		sequences:     make(map[string]int64),
	}
}

type invoiceStoreSnapshot struct {
	items     map[string]*invoice.Invoice
	sequences map[string]int64
}

func (s *InMemoryInvoiceStore) SnapshotState() any {
	s.seqMu.Lock()
	sequences := make(map[string]int64, len(s.sequences))
	for k, v := range s.sequences {
		sequences[k] = v
	}
	s.seqMu.Unlock()

	return invoiceStoreSnapshot{
		items:     s.Snapshot(),
		sequences: sequences,
	}
}

func (s *InMemoryInvoiceStore) RestoreState(snapshot any) {
	snap := snapshot.(invoiceStoreSnapshot)
	s.Restore(snap.items)

	s.seqMu.Lock()
	s.sequences = make(map[string]int64, len(snap.sequences))
	for k, v := range snap.sequences {
		s.sequences[k] = v
	}
	s.seqMu.Unlock()
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	return &cp
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	// enforce the billing-date uniqueness the real schema carries
	if _, err := s.GetByBillingDate(ctx, inv.SubscriberID, inv.SubscriptionID, inv.InvoiceDate); err == nil {
		return ierr.NewError("duplicate invoice").
			WithHint("An invoice already exists for this billing date").
			Mark(ierr.ErrAlreadyProcessed)
	}
	if err := s.InMemoryStore.Create(ctx, inv.ID, copyInvoice(inv)); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || inv.TenantID != types.GetTenantID(ctx) || inv.Status == types.StatusDeleted {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := s.InMemoryStore.Update(ctx, inv.ID, copyInvoice(inv)); err != nil {
		return ierr.WithError(err).
			WithHintf("Invoice with ID %s was not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	matches, _ := s.InMemoryStore.List(ctx, filter, func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		if inv.TenantID != types.GetTenantID(ctx) || inv.Status == types.StatusDeleted {
			return false
		}
		if filter == nil {
			return true
		}
		if filter.SubscriberID != "" && inv.SubscriberID != filter.SubscriberID {
			return false
		}
		if filter.SubscriptionID != "" && inv.SubscriptionID != filter.SubscriptionID {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, inv.InvoiceStatus) {
			return false
		}
		if filter.DueBefore != nil && !inv.DueDate.Before(*filter.DueBefore) {
			return false
		}
		return true
	}, func(i, j *invoice.Invoice) bool {
		return i.InvoiceDate.After(j.InvoiceDate)
	})
	return lo.Map(matches, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) GetByBillingDate(ctx context.Context, subscriberID, subscriptionID string, billingDate time.Time) (*invoice.Invoice, error) {
	day := types.BeginningOfDay(billingDate)
	matches, _ := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.SubscriberID == subscriberID &&
			inv.SubscriptionID == subscriptionID &&
			types.BeginningOfDay(inv.InvoiceDate).Equal(day) &&
			inv.TenantID == types.GetTenantID(ctx) &&
			inv.Status != types.StatusDeleted
	}, nil)
	if len(matches) == 0 {
		return nil, ierr.NewError("invoice not found").
			WithHint("No invoice found for this billing date").
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(matches[0]), nil
}

func (s *InMemoryInvoiceStore) NextSequenceValue(ctx context.Context, yearMonth string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	key := types.GetTenantID(ctx) + ":" + yearMonth
	s.sequences[key]++
	return s.sequences[key], nil
}
