package service

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

// DunningResult summarizes one dunning sweep.
type DunningResult struct {
	RemindersSent     int `json:"reminders_sent"`
	Suspended         int `json:"suspended"`
	Finalized         int `json:"finalized"`
	InvoicesOverdue   int `json:"invoices_overdue"`
	InvoicesGenerated int `json:"invoices_generated"`
}

// DunningService is the daily scheduled sweep over delinquent and ending
// subscriptions: it emits the reminder cadence, suspends subscriptions
// whose grace period ran out, finalizes ended pending cancellations,
// flags overdue invoices and generates renewal invoices that fell due.
type DunningService interface {
	EvaluateSubscriptions(ctx context.Context, now time.Time) (*DunningResult, error)
}

type dunningService struct {
	ServiceParams
	subscriptionService SubscriptionService
	invoiceService      InvoiceService
}

func NewDunningService(params ServiceParams) DunningService {
	return &dunningService{
		ServiceParams:       params,
		subscriptionService: NewSubscriptionService(params),
		invoiceService:      NewInvoiceService(params),
	}
}

func (s *dunningService) EvaluateSubscriptions(ctx context.Context, now time.Time) (*DunningResult, error) {
	result := &DunningResult{}

	overdue, err := s.invoiceService.MarkOverdue(ctx, now)
	if err != nil {
		return result, err
	}
	result.InvoicesOverdue = len(overdue)

	generated, err := s.subscriptionService.GenerateDueInvoices(ctx, now)
	if err != nil {
		return result, err
	}
	result.InvoicesGenerated = len(generated)

	pastDue, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		Statuses: []types.SubscriptionStatus{types.SubscriptionStatusPastDue},
	})
	if err != nil {
		return result, err
	}
	for _, sub := range pastDue {
		if err := s.evaluatePastDue(ctx, sub, now, result); err != nil {
			s.Logger.Errorw("failed to evaluate past_due subscription",
				"error", err, "subscription_id", sub.ID)
		}
	}

	ending, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		Statuses: []types.SubscriptionStatus{types.SubscriptionStatusCancelAtPeriodEnd},
	})
	if err != nil {
		return result, err
	}
	for _, sub := range ending {
		if sub.CurrentPeriodEnd != nil && now.Before(*sub.CurrentPeriodEnd) {
			continue
		}
		if _, err := s.subscriptionService.FinalizePeriodEnd(ctx, sub.ID, now); err != nil {
			s.Logger.Errorw("failed to finalize ended subscription",
				"error", err, "subscription_id", sub.ID)
			continue
		}
		result.Finalized++
	}

	s.Logger.Infow("dunning sweep complete",
		"reminders_sent", result.RemindersSent,
		"suspended", result.Suspended,
		"finalized", result.Finalized,
		"invoices_overdue", result.InvoicesOverdue,
		"invoices_generated", result.InvoicesGenerated,
	)
	return result, nil
}

// evaluatePastDue applies the reminder cadence and the suspension decision
// to one delinquent subscription. The day-1 reminder fires with the
// failure itself; this sweep owns day-3 and the final warning, keyed off
// whole days elapsed since the first unresolved failure. The sweep runs
// daily, so an exact-day match sends each reminder once.
func (s *dunningService) evaluatePastDue(ctx context.Context, sub *subscription.Subscription, now time.Time, result *DunningResult) error {
	if sub.FirstFailedAt == nil {
		return nil
	}

	daysSinceFailure := int(now.Sub(types.BeginningOfDay(*sub.FirstFailedAt)).Hours() / 24)
	graceDays := s.Config.Billing.GracePeriodDays
	finalWarningDay := graceDays - s.Config.Billing.FinalWarningDays

	// grace period expired, or the failure count cap was hit
	if daysSinceFailure >= graceDays || sub.PaymentFailedCount >= s.Config.Billing.MaxPaymentFailures {
		if _, err := s.subscriptionService.Suspend(ctx, sub.ID, now); err != nil {
			return err
		}
		result.Suspended++
		return nil
	}

	var event types.NotificationEventName
	switch daysSinceFailure {
	case 3:
		event = types.NotificationEventPaymentFailedDay3
	case finalWarningDay:
		event = types.NotificationEventPaymentFailedFinal
	default:
		return nil
	}

	if err := s.Publisher.PublishEvent(ctx, event, sub.SubscriberID, map[string]any{
		"subscription_id":    sub.ID,
		"days_since_failure": daysSinceFailure,
		"grace_days_left":    graceDays - daysSinceFailure,
	}); err != nil {
		return err
	}
	result.RemindersSent++
	return nil
}
