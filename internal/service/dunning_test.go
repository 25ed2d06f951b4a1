package service

import (
	"testing"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	"github.com/developer-chetaru/tribe365-billing/internal/testutil"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type DunningServiceSuite struct {
	testutil.BaseServiceTestSuite
	service             DunningService
	subscriptionService SubscriptionService
	invoiceService      InvoiceService
}

func TestDunningService(t *testing.T) {
	suite.Run(t, new(DunningServiceSuite))
}

func (s *DunningServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.serviceParams()
	s.service = NewDunningService(params)
	s.subscriptionService = NewSubscriptionService(params)
	s.invoiceService = NewInvoiceService(params)
}

func (s *DunningServiceSuite) serviceParams() ServiceParams {
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

// seedPastDue creates a past_due subscription whose first failure happened
// daysAgo whole days before now, with failures recorded failure times.
func (s *DunningServiceSuite) seedPastDue(now time.Time, daysAgo int, failures int) *subscription.Subscription {
	ctx := s.GetContext()

	owner := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeOrganisation,
		OwnerID:         types.GenerateUUID(),
		Name:            "Acme",
		Email:           "billing@acme.test",
		PaymentGateway:  types.PaymentGatewayTypeStripe,
		ActiveUserCount: 2,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriberRepo.Create(ctx, owner))

	firstFailedAt := types.BeginningOfDay(now).AddDate(0, 0, -daysAgo)
	periodStart := firstFailedAt.AddDate(0, -1, 0)
	gatewaySubID := "gwsub_" + types.GenerateUUID()
	sub := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:          owner.ID,
		Tier:                  types.SubscriptionTierMomentum,
		UserCount:             2,
		SubscriptionStatus:    types.SubscriptionStatusPastDue,
		CurrentPeriodStart:    &periodStart,
		CurrentPeriodEnd:      &firstFailedAt,
		GatewaySubscriptionID: &gatewaySubID,
		PaymentFailedCount:    failures,
		FirstFailedAt:         &firstFailedAt,
		BaseModel:             types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))
	return sub
}

func (s *DunningServiceSuite) TestDay3Reminder() {
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	sub := s.seedPastDue(now, 3, 1)

	result, err := s.service.EvaluateSubscriptions(s.GetContext(), now)
	s.NoError(err)
	s.Equal(1, result.RemindersSent)
	s.Zero(result.Suspended)

	events := s.GetPublisher().EventsNamed(types.NotificationEventPaymentFailedDay3)
	s.Len(events, 1)
	s.Equal(sub.SubscriberID, events[0].SubscriberID)
}

func (s *DunningServiceSuite) TestFinalWarning() {
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	cfg := s.GetConfig().Billing
	finalDay := cfg.GracePeriodDays - cfg.FinalWarningDays
	s.seedPastDue(now, finalDay, 2)

	result, err := s.service.EvaluateSubscriptions(s.GetContext(), now)
	s.NoError(err)
	s.Equal(1, result.RemindersSent)
	s.Zero(result.Suspended)
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventPaymentFailedFinal), 1)
}

func (s *DunningServiceSuite) TestNoReminderBetweenMilestones() {
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	s.seedPastDue(now, 10, 2)

	result, err := s.service.EvaluateSubscriptions(s.GetContext(), now)
	s.NoError(err)
	s.Zero(result.RemindersSent)
	s.Zero(result.Suspended)
}

func (s *DunningServiceSuite) TestSuspendsWhenGracePeriodElapsed() {
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	sub := s.seedPastDue(now, s.GetConfig().Billing.GracePeriodDays, 3)

	result, err := s.service.EvaluateSubscriptions(s.GetContext(), now)
	s.NoError(err)
	s.Equal(1, result.Suspended)

	reloaded, err := s.subscriptionService.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, reloaded.SubscriptionStatus)
	s.NotNil(reloaded.SuspendedAt)
	s.Len(s.GetPublisher().EventsNamed(types.NotificationEventAccountSuspended), 1)
}

// Three failures inside the grace window do not suspend early: the grace
// period is the primary trigger, the failure cap only backstops it.
func (s *DunningServiceSuite) TestDoesNotSuspendEarlyOnThreeFailures() {
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	sub := s.seedPastDue(now, 10, 3)

	result, err := s.service.EvaluateSubscriptions(s.GetContext(), now)
	s.NoError(err)
	s.Zero(result.Suspended)

	reloaded, err := s.subscriptionService.GetSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, reloaded.SubscriptionStatus)
}

func (s *DunningServiceSuite) TestSuspendsOnFailureCap() {
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	s.seedPastDue(now, 10, s.GetConfig().Billing.MaxPaymentFailures)

	result, err := s.service.EvaluateSubscriptions(s.GetContext(), now)
	s.NoError(err)
	s.Equal(1, result.Suspended)
}

func (s *DunningServiceSuite) TestMarksOverdueAndGeneratesRenewals() {
	ctx := s.GetContext()
	owner := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeOrganisation,
		OwnerID:         types.GenerateUUID(),
		Name:            "Acme",
		Email:           "billing@acme.test",
		PaymentGateway:  types.PaymentGatewayTypeStripe,
		ActiveUserCount: 2,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriberRepo.Create(ctx, owner))

	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	periodStart := now.AddDate(0, -1, 0)
	billingDate := now.AddDate(0, 0, -1)
	gatewaySubID := "gwsub_" + types.GenerateUUID()
	sub := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:          owner.ID,
		Tier:                  types.SubscriptionTierMomentum,
		UserCount:             2,
		SubscriptionStatus:    types.SubscriptionStatusActive,
		CurrentPeriodStart:    &periodStart,
		CurrentPeriodEnd:      &billingDate,
		NextBillingDate:       &billingDate,
		GatewaySubscriptionID: &gatewaySubID,
		BaseModel:             types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))

	// an older pending invoice past its due date
	stale, err := s.invoiceService.GenerateInvoice(ctx, sub, now.AddDate(0, -1, 0))
	s.Require().NoError(err)

	result, err := s.service.EvaluateSubscriptions(ctx, now)
	s.NoError(err)
	s.Equal(1, result.InvoicesOverdue)
	s.Equal(1, result.InvoicesGenerated)

	reloaded, err := s.invoiceService.GetInvoice(ctx, stale.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOverdue, reloaded.InvoiceStatus)
}

func (s *DunningServiceSuite) TestFinalizesEndedCancellations() {
	ctx := s.GetContext()
	owner := &subscriber.Subscriber{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIBER),
		OwnerType:       types.SubscriberOwnerTypeOrganisation,
		OwnerID:         types.GenerateUUID(),
		Name:            "Acme",
		Email:           "billing@acme.test",
		PaymentGateway:  types.PaymentGatewayTypeStripe,
		ActiveUserCount: 1,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriberRepo.Create(ctx, owner))

	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	periodStart := now.AddDate(0, -1, -5)
	periodEnd := now.AddDate(0, 0, -5)
	gatewaySubID := "gwsub_" + types.GenerateUUID()
	sub := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:          owner.ID,
		Tier:                  types.SubscriptionTierBasecamp,
		UserCount:             1,
		SubscriptionStatus:    types.SubscriptionStatusCancelAtPeriodEnd,
		CurrentPeriodStart:    &periodStart,
		CurrentPeriodEnd:      &periodEnd,
		GatewaySubscriptionID: &gatewaySubID,
		BaseModel:             types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))

	result, err := s.service.EvaluateSubscriptions(ctx, now)
	s.NoError(err)
	s.Equal(1, result.Finalized)

	reloaded, err := s.subscriptionService.GetSubscription(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, reloaded.SubscriptionStatus)
	s.Equal(periodEnd, *reloaded.CanceledAt)
}
