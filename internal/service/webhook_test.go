package service

import (
	"testing"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/testutil"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type WebhookServiceSuite struct {
	testutil.BaseServiceTestSuite
	service        WebhookService
	paymentService PaymentService
	invoiceService InvoiceService
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.serviceParams()
	s.service = NewWebhookService(params)
	s.paymentService = NewPaymentService(params)
	s.invoiceService = NewInvoiceService(params)
}

func (s *WebhookServiceSuite) serviceParams() ServiceParams {
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

// seedBilled creates a stripe subscriber with an active subscription and a
// pending invoice for the current cycle.
func (s *WebhookServiceSuite) seedBilled(userCount int) (*subscriber.Subscriber, *subscription.Subscription, *invoice.Invoice) {
	ctx := s.GetContext()

	owner := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeUser,
		OwnerID:         types.GenerateUUID(),
		Name:            "Robin",
		Email:           "robin@example.test",
		PaymentGateway:  types.PaymentGatewayTypeStripe,
		ActiveUserCount: userCount,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriberRepo.Create(ctx, owner))

	now := time.Now().UTC()
	periodEnd := types.NextBillingPeriod(now)
	gatewaySubID := "gwsub_" + types.GenerateUUID()
	sub := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:          owner.ID,
		Tier:                  types.SubscriptionTierBasecamp,
		UserCount:             userCount,
		SubscriptionStatus:    types.SubscriptionStatusActive,
		CurrentPeriodStart:    &now,
		CurrentPeriodEnd:      &periodEnd,
		NextBillingDate:       &periodEnd,
		GatewaySubscriptionID: &gatewaySubID,
		ActivatedAt:           &now,
		BaseModel:             types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))

	inv, err := s.invoiceService.GenerateInvoice(ctx, sub, now)
	s.Require().NoError(err)
	return owner, sub, inv
}

func (s *WebhookServiceSuite) deliver(event *gateway.WebhookEvent) (*WebhookResult, error) {
	s.GetStripeGateway().NextWebhookEvent = event
	return s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayTypeStripe, []byte(`{}`), "t=1,v1=sig")
}

func (s *WebhookServiceSuite) TestPaymentSucceededConfirmsInvoice() {
	_, sub, inv := s.seedBilled(2)
	s.GetStripeGateway().AddIntent("pi_wh_1", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)

	result, err := s.deliver(&gateway.WebhookEvent{
		ID:                   "evt_1",
		Type:                 gateway.EventTypePaymentSucceeded,
		InvoiceID:            inv.ID,
		GatewayTransactionID: "pi_wh_1",
	})
	s.NoError(err)
	s.True(result.Handled)
	s.Equal("evt_1", result.EventID)

	updated, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, updated.InvoiceStatus)

	renewed, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, renewed.SubscriptionStatus)
}

func (s *WebhookServiceSuite) TestPaymentSucceededRedeliveryIsNoOp() {
	_, _, inv := s.seedBilled(1)
	s.GetStripeGateway().AddIntent("pi_wh_2", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)

	event := &gateway.WebhookEvent{
		ID:                   "evt_2",
		Type:                 gateway.EventTypePaymentSucceeded,
		InvoiceID:            inv.ID,
		GatewayTransactionID: "pi_wh_2",
	}
	_, err := s.deliver(event)
	s.NoError(err)

	result, err := s.deliver(event)
	s.NoError(err)
	s.True(result.Handled)

	payments, err := s.paymentService.ListPayments(s.GetContext(), &types.PaymentFilter{InvoiceID: inv.ID})
	s.NoError(err)
	s.Len(payments, 1)
}

func (s *WebhookServiceSuite) TestPaymentSucceededWithoutInvoiceReference() {
	s.seedBilled(1)

	result, err := s.deliver(&gateway.WebhookEvent{
		ID:                   "evt_3",
		Type:                 gateway.EventTypePaymentSucceeded,
		GatewayTransactionID: "pi_oob",
	})
	s.NoError(err)
	s.True(result.Handled)

	payments, err := s.paymentService.ListPayments(s.GetContext(), &types.PaymentFilter{})
	s.NoError(err)
	s.Empty(payments)
}

func (s *WebhookServiceSuite) TestPaymentFailedRecordsFailure() {
	_, sub, inv := s.seedBilled(1)

	result, err := s.deliver(&gateway.WebhookEvent{
		ID:            "evt_4",
		Type:          gateway.EventTypePaymentFailed,
		InvoiceID:     inv.ID,
		FailureReason: "card_declined",
	})
	s.NoError(err)
	s.True(result.Handled)

	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, updated.SubscriptionStatus)
	s.Equal(1, updated.PaymentFailedCount)
	s.NotNil(updated.FirstFailedAt)

	events := s.GetPublisher().EventsNamed(types.NotificationEventPaymentFailedDay1)
	s.Len(events, 1)
}

func (s *WebhookServiceSuite) TestPaymentFailedUnknownInvoice() {
	_, err := s.deliver(&gateway.WebhookEvent{
		ID:        "evt_5",
		Type:      gateway.EventTypePaymentFailed,
		InvoiceID: "inv_missing",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *WebhookServiceSuite) TestSubscriptionCancelledSyncsLocalState() {
	_, sub, inv := s.seedBilled(2)

	result, err := s.deliver(&gateway.WebhookEvent{
		ID:             "evt_6",
		Type:           gateway.EventTypeSubscriptionCancelled,
		SubscriptionID: *sub.GatewaySubscriptionID,
	})
	s.NoError(err)
	s.True(result.Handled)

	updated, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, updated.SubscriptionStatus)
	s.NotNil(updated.CanceledAt)
	s.Nil(updated.NextBillingDate)

	// the gateway already tore down its side; no local call goes back out
	s.Zero(s.GetStripeGateway().CallCount("CancelSubscription"))

	cancelledInv, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, cancelledInv.InvoiceStatus)

	events := s.GetPublisher().EventsNamed(types.NotificationEventSubscriptionCancelled)
	s.Require().Len(events, 1)
	s.Equal("gateway", events[0].Payload["source"])
}

func (s *WebhookServiceSuite) TestSubscriptionCancelledRedeliveryIsNoOp() {
	_, sub, _ := s.seedBilled(1)

	event := &gateway.WebhookEvent{
		ID:             "evt_7",
		Type:           gateway.EventTypeSubscriptionCancelled,
		SubscriptionID: *sub.GatewaySubscriptionID,
	}
	_, err := s.deliver(event)
	s.NoError(err)

	result, err := s.deliver(event)
	s.NoError(err)
	s.True(result.Handled)

	events := s.GetPublisher().EventsNamed(types.NotificationEventSubscriptionCancelled)
	s.Len(events, 1)
}

func (s *WebhookServiceSuite) TestSubscriptionCancelledUnknownReference() {
	result, err := s.deliver(&gateway.WebhookEvent{
		ID:             "evt_8",
		Type:           gateway.EventTypeSubscriptionCancelled,
		SubscriptionID: "gwsub_unknown",
	})
	s.NoError(err)
	s.True(result.Handled)
}

func (s *WebhookServiceSuite) TestIgnoredEventType() {
	result, err := s.deliver(&gateway.WebhookEvent{
		ID:   "evt_9",
		Type: gateway.EventTypeIgnored,
	})
	s.NoError(err)
	s.False(result.Handled)
}

func (s *WebhookServiceSuite) TestRejectsBadSignature() {
	s.GetStripeGateway().FailWith("VerifyWebhookSignature",
		ierr.NewError("signature verification failed").Mark(ierr.ErrValidation))

	_, err := s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayTypeStripe, []byte(`{}`), "bogus")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *WebhookServiceSuite) TestUnknownProvider() {
	_, err := s.service.HandleWebhook(s.GetContext(), types.PaymentGatewayType("braintree"), []byte(`{}`), "sig")
	s.Error(err)
	s.True(ierr.IsNotConfigured(err))
}
