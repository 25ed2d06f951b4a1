package service

import (
	"testing"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/gateway"
	"github.com/developer-chetaru/tribe365-billing/internal/testutil"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service             PaymentService
	subscriptionService SubscriptionService
	invoiceService      InvoiceService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.serviceParams()
	s.service = NewPaymentService(params)
	s.subscriptionService = NewSubscriptionService(params)
	s.invoiceService = NewInvoiceService(params)
}

func (s *PaymentServiceSuite) serviceParams() ServiceParams {
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

// seedBilledSubscription creates a subscriber, an active subscription and
// its pending invoice for the current cycle.
func (s *PaymentServiceSuite) seedBilledSubscription(gw types.PaymentGatewayType, tier types.SubscriptionTier, userCount int) (*subscriber.Subscriber, *subscription.Subscription, *invoice.Invoice) {
	ctx := s.GetContext()

	owner := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeUser,
		OwnerID:         types.GenerateUUID(),
		Name:            "Jordan",
		Email:           "jordan@example.test",
		PaymentGateway:  gw,
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
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))

	inv, err := s.invoiceService.GenerateInvoice(ctx, sub, now)
	s.Require().NoError(err)
	return owner, sub, inv
}

func (s *PaymentServiceSuite) paymentCountFor(invoiceID string) int {
	payments, err := s.service.ListPayments(s.GetContext(), &types.PaymentFilter{InvoiceID: invoiceID})
	s.Require().NoError(err)
	return len(payments)
}

// TestConfirmPaymentEndToEnd walks the full happy path for an individual
// basecamp subscriber: one seat at 10.00 plus 20% VAT settles at 12.00,
// the invoice flips to paid and the next period opens.
func (s *PaymentServiceSuite) TestConfirmPaymentEndToEnd() {
	_, sub, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierBasecamp, 1)
	s.Require().True(inv.TotalAmount.Equal(decimal.RequireFromString("12.00")), "total = %s", inv.TotalAmount)

	s.GetStripeGateway().AddIntent("pi_123", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)

	result, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_123")
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, result.InvoiceStatus)
	s.Equal(types.SubscriptionStatusActive, result.SubscriptionStatus)
	s.Equal(types.PaymentStatusCompleted, result.Payment.PaymentStatus)
	s.Equal(types.PaymentMethodTypeCard, result.Payment.PaymentMethod)
	s.True(result.Payment.Amount.Equal(inv.TotalAmount))

	reloaded, err := s.subscriptionService.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.NextBillingPeriod(result.Payment.PaymentDate), *reloaded.CurrentPeriodEnd)
	s.Equal(types.NextBillingPeriod(result.Payment.PaymentDate), *reloaded.NextBillingDate)

	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventPaymentConfirmed), 1)
}

func (s *PaymentServiceSuite) TestConfirmPaymentIsIdempotent() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 3)
	s.GetStripeGateway().AddIntent("pi_once", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)

	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_once")
	s.NoError(err)

	_, err = s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_once")
	s.Error(err)
	s.True(ierr.IsAlreadyProcessed(err))

	s.Equal(1, s.paymentCountFor(inv.ID), "replay creates no second payment")
}

func (s *PaymentServiceSuite) TestConfirmPaymentRequiresTransactionID() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)

	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestConfirmPaymentUnknownInvoice() {
	_, err := s.service.ConfirmPayment(s.GetContext(), "inv_missing", "pi_123")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestConfirmPaymentNotSucceededAtGateway() {
	_, sub, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	s.GetStripeGateway().AddIntent("pi_pending", gateway.PaymentIntentStatusProcessing, inv.TotalAmount)

	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_pending")
	s.Error(err)
	s.True(ierr.IsPaymentNotConfirmed(err))

	// nothing was written
	s.Zero(s.paymentCountFor(inv.ID))
	reloadedInv, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, reloadedInv.InvoiceStatus)
	reloadedSub, err := s.subscriptionService.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(*sub.CurrentPeriodEnd, *reloadedSub.CurrentPeriodEnd)
}

func (s *PaymentServiceSuite) TestConfirmPaymentGatewayUnreachable() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	s.GetStripeGateway().FailWith("RetrievePaymentIntent", ierr.NewError("stripe is down").
		Mark(ierr.ErrGatewayUnavailable))

	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_123")
	s.Error(err)
	s.True(ierr.IsGatewayUnavailable(err))
	s.Zero(s.paymentCountFor(inv.ID))
}

// TestConfirmPaymentRollsBackAtomically forces the final step of the
// settlement transaction to fail and verifies no partial state survives:
// no payment row, invoice still pending.
func (s *PaymentServiceSuite) TestConfirmPaymentRollsBackAtomically() {
	_, sub, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	s.GetStripeGateway().AddIntent("pi_atomic", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)

	// break the subscription advance by deleting the subscription after
	// the invoice was issued
	deleted, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	deleted.Status = types.StatusDeleted
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), deleted))

	_, err = s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_atomic")
	s.Error(err)

	s.Zero(s.paymentCountFor(inv.ID), "payment insert was rolled back")
	reloaded, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, reloaded.InvoiceStatus, "invoice update was rolled back")
}

// TestConfirmPaymentDuplicateInsertIsRejected drives the settlement past
// the duplicate pre-check with the same transaction already committed, as
// a concurrent confirmation would leave it. The unique
// (invoice_id, gateway_transaction_id) index must reject the insert and
// the losing caller must observe the already-processed outcome with no
// local writes.
func (s *PaymentServiceSuite) TestConfirmPaymentDuplicateInsertIsRejected() {
	_, sub, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	ctx := s.GetContext()

	winner := &payment.Payment{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:            inv.ID,
		SubscriberID:         inv.SubscriberID,
		PaymentMethod:        types.PaymentMethodTypeCard,
		Amount:               inv.TotalAmount,
		Currency:             inv.Currency,
		GatewayTransactionID: "pi_race",
		PaymentStatus:        types.PaymentStatusCompleted,
		PaymentDate:          time.Now().UTC(),
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PaymentRepo.Create(ctx, winner))

	loser := &payment.Payment{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:            inv.ID,
		SubscriberID:         inv.SubscriberID,
		PaymentMethod:        types.PaymentMethodTypeCard,
		Amount:               inv.TotalAmount,
		Currency:             inv.Currency,
		GatewayTransactionID: "pi_race",
		PaymentStatus:        types.PaymentStatusCompleted,
		PaymentDate:          time.Now().UTC(),
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
	_, err := s.service.(*paymentService).settleInvoice(ctx, inv, loser)
	s.Error(err)
	s.True(ierr.IsAlreadyProcessed(err))

	s.Equal(1, s.paymentCountFor(inv.ID), "only the committed payment remains")
	reloaded, err := s.invoiceService.GetInvoice(ctx, inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, reloaded.InvoiceStatus, "invoice update was rolled back")

	after, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(sub.NextBillingDate.Unix(), after.NextBillingDate.Unix(), "period did not advance")
}

func (s *PaymentServiceSuite) TestConfirmPaymentUsesPayPalForPayPalSubscribers() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypePayPal, types.SubscriptionTierMomentum, 2)
	s.GetPayPalGateway().AddIntent("order_9", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)

	result, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "order_9")
	s.NoError(err)
	s.Equal(types.PaymentMethodTypePayPal, result.Payment.PaymentMethod)
	s.Equal(1, s.GetPayPalGateway().CallCount("RetrievePaymentIntent"))
	s.Zero(s.GetStripeGateway().CallCount("RetrievePaymentIntent"))
}

func (s *PaymentServiceSuite) TestManualPaymentFlow() {
	_, sub, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)

	proof := "/uploads/proof-7781.pdf"
	p, err := s.service.RecordManualPayment(s.GetContext(), inv.ID, inv.TotalAmount, "paid by BACS", &proof)
	s.NoError(err)
	s.Equal(types.PaymentStatusPending, p.PaymentStatus)
	s.Equal(types.PaymentMethodTypeBankTransfer, p.PaymentMethod)

	// the invoice stays open until an admin confirms
	reloaded, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, reloaded.InvoiceStatus)

	result, err := s.service.ConfirmManualPayment(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, result.InvoiceStatus)
	s.Equal(types.PaymentStatusCompleted, result.Payment.PaymentStatus)
	s.Equal(sub.ID, result.SubscriptionID)

	// confirming again is rejected
	_, err = s.service.ConfirmManualPayment(s.GetContext(), p.ID)
	s.Error(err)
	s.True(ierr.IsAlreadyProcessed(err))
}

func (s *PaymentServiceSuite) TestRecordManualPaymentRejectsPaidInvoice() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	s.GetStripeGateway().AddIntent("pi_paid", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)
	_, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_paid")
	s.Require().NoError(err)

	_, err = s.service.RecordManualPayment(s.GetContext(), inv.ID, inv.TotalAmount, "", nil)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestRefundPayment() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	s.GetStripeGateway().AddIntent("pi_refund", gateway.PaymentIntentStatusSucceeded, inv.TotalAmount)
	result, err := s.service.ConfirmPayment(s.GetContext(), inv.ID, "pi_refund")
	s.Require().NoError(err)

	refunded, err := s.service.RefundPayment(s.GetContext(), result.Payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusRefunded, refunded.PaymentStatus)
	s.NotNil(refunded.RefundedAt)
	s.Contains(refunded.Notes, "refund ")
	s.Equal(1, s.GetStripeGateway().CallCount("ProcessRefund"))

	// a refunded payment cannot be refunded again
	_, err = s.service.RefundPayment(s.GetContext(), result.Payment.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestRefundManualPaymentRejected() {
	_, _, inv := s.seedBilledSubscription(types.PaymentGatewayTypeStripe, types.SubscriptionTierMomentum, 2)
	p, err := s.service.RecordManualPayment(s.GetContext(), inv.ID, inv.TotalAmount, "", nil)
	s.Require().NoError(err)
	_, err = s.service.ConfirmManualPayment(s.GetContext(), p.ID)
	s.Require().NoError(err)

	_, err = s.service.RefundPayment(s.GetContext(), p.ID)
	s.Error(err)
	s.True(ierr.IsNotConfigured(err))
}
