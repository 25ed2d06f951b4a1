package service

import (
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

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service        SubscriptionService
	invoiceService InvoiceService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.serviceParams()
	s.service = NewSubscriptionService(params)
	s.invoiceService = NewInvoiceService(params)
}

func (s *SubscriptionServiceSuite) serviceParams() ServiceParams {
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

func (s *SubscriptionServiceSuite) seedSubscriber(gw types.PaymentGatewayType, userCount int) *subscriber.Subscriber {
	ctx := s.GetContext()
	sub := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeOrganisation,
		OwnerID:         types.GenerateUUID(),
		Name:            "Acme",
		Email:           "billing@acme.test",
		PaymentGateway:  gw,
		ActiveUserCount: userCount,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriberRepo.Create(ctx, sub))
	return sub
}

func (s *SubscriptionServiceSuite) seedActiveSubscription(sub *subscriber.Subscriber, tier types.SubscriptionTier, userCount int) *subscription.Subscription {
	ctx := s.GetContext()
	now := time.Now().UTC()
	periodEnd := types.NextBillingPeriod(now)
	gatewaySubID := "gwsub_" + types.GenerateUUID()
	active := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:          sub.ID,
		Tier:                  tier,
		UserCount:             userCount,
		SubscriptionStatus:    types.SubscriptionStatusActive,
		CurrentPeriodStart:    &now,
		CurrentPeriodEnd:      &periodEnd,
		NextBillingDate:       &periodEnd,
		GatewaySubscriptionID: &gatewaySubID,
		ActivatedAt:           &now,
		BaseModel:             types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, active))
	return active
}

func (s *SubscriptionServiceSuite) TestActivateSubscription() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 4)

	sub, err := s.service.ActivateSubscription(s.GetContext(), owner.ID, types.SubscriptionTierMomentum, 0)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(4, sub.UserCount, "defaults to the subscriber's active seat count")
	s.NotNil(sub.GatewaySubscriptionID)
	s.NotNil(sub.CurrentPeriodEnd)

	s.Equal(1, s.GetStripeGateway().CallCount("CreateCustomer"))
	s.Equal(1, s.GetStripeGateway().CallCount("CreateSubscription"))

	// the customer reference is stored back on the subscriber
	reloaded, err := s.GetStores().SubscriberRepo.Get(s.GetContext(), owner.ID)
	s.NoError(err)
	s.NotNil(reloaded.GatewayCustomerID)

	// the first invoice of the cycle is generated with the subscription
	invoices, err := s.invoiceService.ListInvoices(s.GetContext(), &types.InvoiceFilter{SubscriptionID: sub.ID})
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceStatusPending, invoices[0].InvoiceStatus)
}

func (s *SubscriptionServiceSuite) TestActivateSubscriptionDuplicate() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)

	_, err := s.service.ActivateSubscription(s.GetContext(), owner.ID, types.SubscriptionTierMomentum, 2)
	s.Error(err)
	s.True(ierr.IsAlreadyProcessed(err))

	// a different tier is allowed
	_, err = s.service.ActivateSubscription(s.GetContext(), owner.ID, types.SubscriptionTierVision, 2)
	s.NoError(err)
}

func (s *SubscriptionServiceSuite) TestActivateGatewayFailureCreatesNothing() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	s.GetStripeGateway().FailWith("CreateSubscription", ierr.NewError("stripe is down").
		Mark(ierr.ErrGatewayUnavailable))

	_, err := s.service.ActivateSubscription(s.GetContext(), owner.ID, types.SubscriptionTierSpark, 2)
	s.Error(err)
	s.True(ierr.IsGatewayUnavailable(err))

	subs, err := s.service.ListSubscriptions(s.GetContext(), &types.SubscriptionFilter{SubscriberID: owner.ID})
	s.NoError(err)
	s.Empty(subs)
}

func (s *SubscriptionServiceSuite) TestCancelImmediate() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 3)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 3)
	inv, err := s.invoiceService.GenerateInvoice(s.GetContext(), sub, time.Now().UTC())
	s.Require().NoError(err)

	canceled, err := s.service.Cancel(s.GetContext(), sub.ID, false)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, canceled.SubscriptionStatus)
	s.NotNil(canceled.CanceledAt)
	s.Equal(1, s.GetStripeGateway().CallCount("CancelSubscription"))

	// open invoices are cancelled with the subscription
	reloaded, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, reloaded.InvoiceStatus)

	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventSubscriptionCancelled), 1)
}

func (s *SubscriptionServiceSuite) TestCancelTwiceIsNoOp() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 1)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierBasecamp, 1)

	first, err := s.service.Cancel(s.GetContext(), sub.ID, false)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, first.SubscriptionStatus)

	second, err := s.service.Cancel(s.GetContext(), sub.ID, false)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, second.SubscriptionStatus)
	s.Equal(first.ID, second.ID)

	// the gateway is only ever asked once
	s.Equal(1, s.GetStripeGateway().CallCount("CancelSubscription"))
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventSubscriptionCancelled), 1)
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEndTwiceIsNoOp() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)

	first, err := s.service.Cancel(s.GetContext(), sub.ID, true)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelAtPeriodEnd, first.SubscriptionStatus)

	second, err := s.service.Cancel(s.GetContext(), sub.ID, true)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelAtPeriodEnd, second.SubscriptionStatus)
	s.Equal(1, s.GetStripeGateway().CallCount("CancelSubscription"))
}

func (s *SubscriptionServiceSuite) TestCancelGatewayFailureLeavesStateUntouched() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	s.GetStripeGateway().FailWith("CancelSubscription", ierr.NewError("stripe is down").
		Mark(ierr.ErrGatewayUnavailable))

	_, err := s.service.Cancel(s.GetContext(), sub.ID, false)
	s.Error(err)
	s.True(ierr.IsGatewayUnavailable(err))

	reloaded, err := s.service.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, reloaded.SubscriptionStatus)
	s.Nil(reloaded.CanceledAt)
}

func (s *SubscriptionServiceSuite) TestCancelWithoutGatewayReference() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 1)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierBasecamp, 1)
	sub.GatewaySubscriptionID = nil
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	_, err := s.service.Cancel(s.GetContext(), sub.ID, false)
	s.Error(err)
	s.True(ierr.IsNotConfigured(err))
}

func (s *SubscriptionServiceSuite) TestUpdateQuantityAddsSeats() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 3)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 3)

	result, err := s.service.UpdateQuantity(s.GetContext(), sub.ID, 5)
	s.NoError(err)
	s.Equal(3, result.PreviousCount)
	s.Equal(5, result.NewCount)
	s.True(result.CreditAmount.IsZero())
	s.True(result.DailyRate.GreaterThan(decimal.Zero))
	s.Equal(1, s.GetStripeGateway().CallCount("UpdateSubscriptionQuantity"))

	reloaded, err := s.service.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(5, reloaded.UserCount)
}

func (s *SubscriptionServiceSuite) TestUpdateQuantityRemovesSeats() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 5)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 5)

	result, err := s.service.UpdateQuantity(s.GetContext(), sub.ID, 3)
	s.NoError(err)
	s.True(result.ProRataCharge.IsZero())
	s.True(result.CreditAmount.GreaterThanOrEqual(decimal.Zero))

	reloaded, err := s.service.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(3, reloaded.UserCount)
}

func (s *SubscriptionServiceSuite) TestUpdateQuantitySameCountIsNoOp() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 3)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 3)

	result, err := s.service.UpdateQuantity(s.GetContext(), sub.ID, 3)
	s.NoError(err)
	s.True(result.ProRataCharge.IsZero())
	s.True(result.CreditAmount.IsZero())
	s.Zero(s.GetStripeGateway().CallCount("UpdateSubscriptionQuantity"))
}

func (s *SubscriptionServiceSuite) TestUpdateQuantityRejectsInactive() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	sub.SubscriptionStatus = types.SubscriptionStatusSuspended
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	_, err := s.service.UpdateQuantity(s.GetContext(), sub.ID, 4)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestRenewalQuoteUsesCurrentSeatCount() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 7)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 3)

	price, ok := s.GetConfig().Billing.PricePerUser(types.SubscriptionTierMomentum)
	s.Require().True(ok)

	quote, err := s.service.RenewalQuote(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(7, quote.UserCount, "quotes the subscriber's live seat count")

	subtotal := price.Mul(decimal.NewFromInt(7)).Round(2)
	tax := subtotal.Mul(s.GetConfig().Billing.TaxRate).Round(2)
	s.True(quote.Subtotal.Equal(subtotal))
	s.True(quote.TaxAmount.Equal(tax))
	s.True(quote.TotalAmount.Equal(subtotal.Add(tax)))
}

func (s *SubscriptionServiceSuite) TestRecordPaymentFailure() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)

	updated, err := s.service.RecordPaymentFailure(s.GetContext(), sub.ID, nil, "card_declined")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, updated.SubscriptionStatus)
	s.Equal(1, updated.PaymentFailedCount)
	s.NotNil(updated.FirstFailedAt)

	events, err := s.GetStores().FailureEventRepo.ListUnresolved(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(events, 1)
	s.Equal("card_declined", events[0].Reason)
	s.Equal(1, events[0].AttemptNumber)

	// the day-1 reminder fires exactly once, with the first failure
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventPaymentFailedDay1), 1)

	firstFailedAt := *updated.FirstFailedAt
	updated, err = s.service.RecordPaymentFailure(s.GetContext(), sub.ID, nil, "card_declined")
	s.NoError(err)
	s.Equal(2, updated.PaymentFailedCount)
	s.Equal(firstFailedAt, *updated.FirstFailedAt, "first failure timestamp is sticky")
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventPaymentFailedDay1), 1)
}

func (s *SubscriptionServiceSuite) TestMarkPaymentSucceededAdvancesPeriod() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	_, err := s.service.RecordPaymentFailure(s.GetContext(), sub.ID, nil, "card_declined")
	s.Require().NoError(err)

	paidAt := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	updated, err := s.service.MarkPaymentSucceeded(s.GetContext(), sub.ID, paidAt)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.Equal(paidAt, *updated.CurrentPeriodStart)
	s.Equal(types.NextBillingPeriod(paidAt), *updated.CurrentPeriodEnd)
	s.Equal(types.NextBillingPeriod(paidAt), *updated.NextBillingDate)
	s.Zero(updated.PaymentFailedCount)
	s.Nil(updated.FirstFailedAt)

	events, err := s.GetStores().FailureEventRepo.ListUnresolved(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Empty(events, "failure trail is resolved on payment")
}

func (s *SubscriptionServiceSuite) TestMarkPaymentSucceededReactivatesSuspended() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	_, err := s.service.RecordPaymentFailure(s.GetContext(), sub.ID, nil, "card_declined")
	s.Require().NoError(err)
	_, err = s.service.Suspend(s.GetContext(), sub.ID, time.Now().UTC())
	s.Require().NoError(err)

	updated, err := s.service.MarkPaymentSucceeded(s.GetContext(), sub.ID, time.Now().UTC())
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.Nil(updated.SuspendedAt)
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventAccountReactivated), 1)
}

func (s *SubscriptionServiceSuite) TestMarkPaymentSucceededKeepsPendingCancellation() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	_, err := s.service.Cancel(s.GetContext(), sub.ID, true)
	s.Require().NoError(err)

	updated, err := s.service.MarkPaymentSucceeded(s.GetContext(), sub.ID, time.Now().UTC())
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelAtPeriodEnd, updated.SubscriptionStatus,
		"final payment settles the period without reviving the subscription")
}

func (s *SubscriptionServiceSuite) TestSuspend() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	_, err := s.service.RecordPaymentFailure(s.GetContext(), sub.ID, nil, "card_declined")
	s.Require().NoError(err)

	now := time.Now().UTC()
	updated, err := s.service.Suspend(s.GetContext(), sub.ID, now)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, updated.SubscriptionStatus)
	s.Equal(now, *updated.SuspendedAt)
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventAccountSuspended), 1)
}

func (s *SubscriptionServiceSuite) TestFinalizePeriodEnd() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)
	_, err := s.service.Cancel(s.GetContext(), sub.ID, true)
	s.Require().NoError(err)

	// before the period ends the cancellation stays pending
	_, err = s.service.FinalizePeriodEnd(s.GetContext(), sub.ID, time.Now().UTC())
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	reloaded, err := s.service.GetSubscription(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	after := reloaded.CurrentPeriodEnd.Add(time.Hour)

	finalized, err := s.service.FinalizePeriodEnd(s.GetContext(), sub.ID, after)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, finalized.SubscriptionStatus)
	s.Equal(*reloaded.CurrentPeriodEnd, *finalized.CanceledAt)
	s.Nil(finalized.NextBillingDate)
}

func (s *SubscriptionServiceSuite) TestGenerateDueInvoices() {
	owner := s.seedSubscriber(types.PaymentGatewayTypeStripe, 2)
	sub := s.seedActiveSubscription(owner, types.SubscriptionTierMomentum, 2)

	// not due yet
	generated, err := s.service.GenerateDueInvoices(s.GetContext(), time.Now().UTC())
	s.NoError(err)
	s.Empty(generated)

	due := sub.NextBillingDate.Add(time.Hour)
	generated, err = s.service.GenerateDueInvoices(s.GetContext(), due)
	s.NoError(err)
	s.Len(generated, 1)
	s.Equal(sub.ID, generated[0].SubscriptionID)

	// rerunning the sweep does not duplicate the invoice
	again, err := s.service.GenerateDueInvoices(s.GetContext(), due)
	s.NoError(err)
	s.Len(again, 1)
	s.Equal(generated[0].ID, again[0].ID)
}
