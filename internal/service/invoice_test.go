package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/testutil"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(s.serviceParams())
}

func (s *InvoiceServiceSuite) serviceParams() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		SubscriberRepo:   stores.SubscriberRepo,
		SubRepo:          stores.SubscriptionRepo,
		FailureEventRepo: stores.FailureEventRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		PaymentRepo:      stores.PaymentRepo,
		GatewayFactory:   s.GetGatewayFactory(),
		Publisher:        s.GetPublisher(),
	}
}

func (s *InvoiceServiceSuite) seedSubscription(tier types.SubscriptionTier, userCount int) *subscription.Subscription {
	ctx := s.GetContext()

	sub := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeOrganisation,
		OwnerID:         types.GenerateUUID(),
		Name:            "Acme",
		Email:           "billing@acme.test",
		PaymentGateway:  types.PaymentGatewayTypeStripe,
		ActiveUserCount: userCount,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriberRepo.Create(ctx, sub))

	now := time.Now().UTC()
	periodEnd := types.NextBillingPeriod(now)
	subscription := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:       sub.ID,
		Tier:               tier,
		UserCount:          userCount,
		SubscriptionStatus: types.SubscriptionStatusActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &periodEnd,
		NextBillingDate:    &periodEnd,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, subscription))
	return subscription
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceArithmetic() {
	sub := s.seedSubscription(types.SubscriptionTierBasecamp, 3)
	billingDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	inv, err := s.service.GenerateInvoice(s.GetContext(), sub, billingDate)
	s.NoError(err)
	s.True(inv.Subtotal.Equal(decimal.RequireFromString("30.00")), "subtotal = %s", inv.Subtotal)
	s.True(inv.TaxAmount.Equal(decimal.RequireFromString("6.00")), "tax = %s", inv.TaxAmount)
	s.True(inv.TotalAmount.Equal(decimal.RequireFromString("36.00")), "total = %s", inv.TotalAmount)
	s.Equal("GBP", inv.Currency)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Equal(billingDate.AddDate(0, 0, 7), inv.DueDate)
}

func (s *InvoiceServiceSuite) TestInvoiceNumberFormat() {
	sub := s.seedSubscription(types.SubscriptionTierMomentum, 2)
	billingDate := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	inv, err := s.service.GenerateInvoice(s.GetContext(), sub, billingDate)
	s.NoError(err)
	s.Equal("INV-202608-0001", inv.InvoiceNumber)

	other := s.seedSubscription(types.SubscriptionTierVision, 1)
	second, err := s.service.GenerateInvoice(s.GetContext(), other, billingDate)
	s.NoError(err)
	s.Equal("INV-202608-0002", second.InvoiceNumber)

	// a new month restarts the sequence
	nextMonth := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	third, err := s.service.GenerateInvoice(s.GetContext(), sub, nextMonth)
	s.NoError(err)
	s.Equal("INV-202609-0001", third.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceIdempotent() {
	sub := s.seedSubscription(types.SubscriptionTierSpark, 5)
	billingDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.service.GenerateInvoice(s.GetContext(), sub, billingDate)
	s.NoError(err)

	second, err := s.service.GenerateInvoice(s.GetContext(), sub, billingDate)
	s.NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(first.InvoiceNumber, second.InvoiceNumber)

	// different time of day, same calendar day
	later := billingDate.Add(9 * time.Hour)
	third, err := s.service.GenerateInvoice(s.GetContext(), sub, later)
	s.NoError(err)
	s.Equal(first.ID, third.ID)

	invoices, err := s.service.ListInvoices(s.GetContext(), &types.InvoiceFilter{SubscriptionID: sub.ID})
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *InvoiceServiceSuite) TestGenerateInvoiceUnconfiguredTier() {
	sub := s.seedSubscription(types.SubscriptionTierSpark, 1)
	delete(s.GetConfig().Billing.TierPrices, types.SubscriptionTierSpark.String())

	_, err := s.service.GenerateInvoice(s.GetContext(), sub, time.Now().UTC())
	s.Error(err)
	s.True(ierr.IsNotConfigured(err))
}

func (s *InvoiceServiceSuite) TestMarkOverdue() {
	sub := s.seedSubscription(types.SubscriptionTierMomentum, 1)
	billingDate := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	inv, err := s.service.GenerateInvoice(s.GetContext(), sub, billingDate)
	s.NoError(err)

	// before the due date nothing moves
	early, err := s.service.MarkOverdue(s.GetContext(), billingDate.AddDate(0, 0, 6))
	s.NoError(err)
	s.Empty(early)

	late, err := s.service.MarkOverdue(s.GetContext(), billingDate.AddDate(0, 0, 10))
	s.NoError(err)
	s.Len(late, 1)

	reloaded, err := s.service.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOverdue, reloaded.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestCancelPending() {
	sub := s.seedSubscription(types.SubscriptionTierVision, 2)
	inv, err := s.service.GenerateInvoice(s.GetContext(), sub, time.Now().UTC())
	s.NoError(err)

	s.NoError(s.service.CancelPending(s.GetContext(), sub.ID))

	reloaded, err := s.service.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, reloaded.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestSequencePerMonthIsMonotonic() {
	billingDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		sub := s.seedSubscription(types.SubscriptionTierMomentum, i)
		inv, err := s.service.GenerateInvoice(s.GetContext(), sub, billingDate)
		s.NoError(err)
		s.Equal(fmt.Sprintf("INV-202608-%04d", i), inv.InvoiceNumber)
	}
}
