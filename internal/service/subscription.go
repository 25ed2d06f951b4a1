package service

import (
	"context"
	"time"

	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/proration"
	"github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/shopspring/decimal"
)

// RenewalQuote is a price preview for the next billing cycle. Nothing is
// mutated until payment succeeds.
type RenewalQuote struct {
	SubscriptionID  string                 `json:"subscription_id"`
	Tier            types.SubscriptionTier `json:"tier"`
	UserCount       int                    `json:"user_count"`
	PricePerUser    decimal.Decimal        `json:"price_per_user"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	TaxAmount       decimal.Decimal        `json:"tax_amount"`
	TotalAmount     decimal.Decimal        `json:"total_amount"`
	Currency        string                 `json:"currency"`
	NextBillingDate *time.Time             `json:"next_billing_date,omitempty"`
}

// QuantityChangeResult describes the outcome of a mid-cycle seat change,
// including the prorated charge or credit it produced.
type QuantityChangeResult struct {
	Subscription  *subscription.Subscription `json:"subscription"`
	PreviousCount int                        `json:"previous_count"`
	NewCount      int                        `json:"new_count"`
	DailyRate     decimal.Decimal            `json:"daily_rate"`
	ProRataCharge decimal.Decimal            `json:"pro_rata_charge"`
	CreditAmount  decimal.Decimal            `json:"credit_amount"`
}

// SubscriptionService owns the subscription state machine and orchestrates
// gateway calls, invoice generation and lifecycle notifications.
type SubscriptionService interface {
	ActivateSubscription(ctx context.Context, subscriberID string, tier types.SubscriptionTier, userCount int) (*subscription.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error)

	// RenewalQuote prices the next cycle off the subscriber's current
	// seat count without mutating anything
	RenewalQuote(ctx context.Context, subscriptionID string) (*RenewalQuote, error)

	// UpdateQuantity changes the seat count mid-cycle, prorating the
	// difference and pushing the new quantity to the gateway
	UpdateQuantity(ctx context.Context, subscriptionID string, newUserCount int) (*QuantityChangeResult, error)

	// Cancel requests cancellation. atPeriodEnd keeps the subscription
	// usable until the current period ends; cancelling an already
	// canceled subscription is a no-op returning the current state.
	Cancel(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*subscription.Subscription, error)

	// RecordPaymentFailure moves the subscription to past_due and appends
	// to the failure audit trail
	RecordPaymentFailure(ctx context.Context, subscriptionID string, invoiceID *string, reason string) (*subscription.Subscription, error)

	// MarkPaymentSucceeded reactivates the subscription after a
	// successful charge: failure state cleared, period advanced one month
	// from paidAt. Runs in the caller's transaction when one is open.
	MarkPaymentSucceeded(ctx context.Context, subscriptionID string, paidAt time.Time) (*subscription.Subscription, error)

	// Suspend revokes access after the grace period ran out
	Suspend(ctx context.Context, subscriptionID string, now time.Time) (*subscription.Subscription, error)

	// FinalizePeriodEnd completes a pending cancellation whose period has
	// ended
	FinalizePeriodEnd(ctx context.Context, subscriptionID string, now time.Time) (*subscription.Subscription, error)

	// GenerateDueInvoices creates the invoice for every subscription whose
	// next billing date has arrived. Safe to rerun: generation is
	// idempotent per billing date.
	GenerateDueInvoices(ctx context.Context, now time.Time) ([]*invoice.Invoice, error)
}

type subscriptionService struct {
	ServiceParams
	invoiceService InvoiceService
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams:  params,
		invoiceService: NewInvoiceService(params),
	}
}

// lockSubscription serializes lifecycle operations per subscription for
// the duration of the enclosing transaction, so a cancellation and a
// renewal tick can never interleave.
func (s *subscriptionService) lockSubscription(ctx context.Context, subscriptionID string) error {
	_, err := s.DB.Querier(ctx).ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, subscriptionID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to acquire subscription lock").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *subscriptionService) ActivateSubscription(ctx context.Context, subscriberID string, tier types.SubscriptionTier, userCount int) (*subscription.Subscription, error) {
	sub, err := s.SubscriberRepo.Get(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	if userCount < 1 {
		userCount = sub.ActiveUserCount
	}
	if userCount < 1 {
		userCount = 1
	}

	// at most one non-canceled subscription per (subscriber, tier)
	if existing, err := s.SubRepo.GetActiveBySubscriberAndTier(ctx, subscriberID, tier); err == nil {
		return nil, ierr.NewError("subscription already exists").
			WithHintf("Subscriber already has a %s subscription in status %s", tier, existing.SubscriptionStatus).
			WithReportableDetails(map[string]any{"subscription_id": existing.ID}).
			Mark(ierr.ErrAlreadyProcessed)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	client, err := s.GatewayFactory.GetClient(sub.PaymentGateway)
	if err != nil {
		return nil, err
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()

	if sub.GatewayCustomerID == nil || *sub.GatewayCustomerID == "" {
		customerID, err := client.CreateCustomer(gatewayCtx, sub)
		if err != nil {
			return nil, err
		}
		sub.GatewayCustomerID = &customerID
		if err := s.SubscriberRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
	}

	snapshot, err := client.CreateSubscription(gatewayCtx, *sub.GatewayCustomerID, tier, userCount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	periodStart := snapshot.CurrentPeriodStart
	if periodStart.IsZero() {
		periodStart = now
	}
	periodEnd := snapshot.CurrentPeriodEnd
	if periodEnd.IsZero() {
		periodEnd = types.NextBillingPeriod(periodStart)
	}

	newSub := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		SubscriberID:          sub.ID,
		Tier:                  tier,
		UserCount:             userCount,
		SubscriptionStatus:    types.SubscriptionStatusActive,
		CurrentPeriodStart:    &periodStart,
		CurrentPeriodEnd:      &periodEnd,
		NextBillingDate:       &periodEnd,
		GatewaySubscriptionID: &snapshot.ID,
		ActivatedAt:           &now,
		BaseModel:             types.GetDefaultBaseModel(ctx),
	}
	if err := newSub.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.SubRepo.Create(txCtx, newSub); err != nil {
			return err
		}
		_, err := s.invoiceService.GenerateInvoice(txCtx, newSub, periodStart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("activated subscription",
		"subscription_id", newSub.ID,
		"subscriber_id", sub.ID,
		"tier", tier,
		"user_count", userCount,
	)
	return newSub, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.SubRepo.Get(ctx, id)
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	return s.SubRepo.List(ctx, filter)
}

func (s *subscriptionService) RenewalQuote(ctx context.Context, subscriptionID string) (*RenewalQuote, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	subscriber, err := s.SubscriberRepo.Get(ctx, sub.SubscriberID)
	if err != nil {
		return nil, err
	}

	// the renewal bills the subscriber's current seat count, not the
	// count frozen on the subscription
	userCount := subscriber.ActiveUserCount
	if userCount < 1 {
		userCount = sub.UserCount
	}

	pricePerUser, ok := s.Config.Billing.PricePerUser(sub.Tier)
	if !ok {
		return nil, ierr.NewError("no price configured for tier").
			WithHintf("No price is configured for tier %s", sub.Tier).
			Mark(ierr.ErrNotConfigured)
	}

	subtotal := pricePerUser.Mul(decimal.NewFromInt(int64(userCount))).Round(2)
	taxAmount := subtotal.Mul(s.Config.Billing.TaxRate).Round(2)

	return &RenewalQuote{
		SubscriptionID:  sub.ID,
		Tier:            sub.Tier,
		UserCount:       userCount,
		PricePerUser:    pricePerUser,
		Subtotal:        subtotal,
		TaxAmount:       taxAmount,
		TotalAmount:     subtotal.Add(taxAmount),
		Currency:        s.Config.Billing.Currency,
		NextBillingDate: sub.NextBillingDate,
	}, nil
}

func (s *subscriptionService) UpdateQuantity(ctx context.Context, subscriptionID string, newUserCount int) (*QuantityChangeResult, error) {
	if newUserCount < 1 {
		return nil, ierr.NewError("invalid user count").
			WithHint("User count must be at least 1").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not active").
			WithHintf("Cannot change seats on a %s subscription", sub.SubscriptionStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	result := &QuantityChangeResult{
		Subscription:  sub,
		PreviousCount: sub.UserCount,
		NewCount:      newUserCount,
		ProRataCharge: decimal.Zero,
		CreditAmount:  decimal.Zero,
	}
	if newUserCount == sub.UserCount {
		return result, nil
	}

	if sub.GatewaySubscriptionID == nil || *sub.GatewaySubscriptionID == "" {
		return nil, ierr.NewError("subscription has no gateway reference").
			WithHint("This subscription is not linked to a payment gateway").
			Mark(ierr.ErrNotConfigured)
	}

	pricePerUser, ok := s.Config.Billing.PricePerUser(sub.Tier)
	if !ok {
		return nil, ierr.NewError("no price configured for tier").
			WithHintf("No price is configured for tier %s", sub.Tier).
			Mark(ierr.ErrNotConfigured)
	}

	now := time.Now().UTC()
	daysInMonth := types.DaysInMonth(now)
	calc := proration.NewCalculator()

	if newUserCount > sub.UserCount {
		added := newUserCount - sub.UserCount
		addition, err := calc.CalculateAddition(pricePerUser, daysInMonth-now.Day(), daysInMonth)
		if err != nil {
			return nil, err
		}
		result.DailyRate = addition.DailyRate
		result.ProRataCharge = addition.ProRataAmount.Mul(decimal.NewFromInt(int64(added))).Round(2)
	} else {
		removed := sub.UserCount - newUserCount
		removal, err := calc.CalculateRemoval(pricePerUser, now.Day(), daysInMonth)
		if err != nil {
			return nil, err
		}
		result.DailyRate = removal.DailyRate
		result.CreditAmount = removal.CreditAmount.Mul(decimal.NewFromInt(int64(removed))).Round(2)
	}

	subscriber, err := s.SubscriberRepo.Get(ctx, sub.SubscriberID)
	if err != nil {
		return nil, err
	}
	client, err := s.GatewayFactory.GetClient(subscriber.PaymentGateway)
	if err != nil {
		return nil, err
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	if _, err := client.UpdateSubscriptionQuantity(gatewayCtx, *sub.GatewaySubscriptionID, newUserCount); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.lockSubscription(txCtx, sub.ID); err != nil {
			return err
		}
		sub.UserCount = newUserCount
		return s.SubRepo.Update(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("updated subscription quantity",
		"subscription_id", sub.ID,
		"previous_count", result.PreviousCount,
		"new_count", newUserCount,
		"pro_rata_charge", result.ProRataCharge,
		"credit_amount", result.CreditAmount,
	)
	return result, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	// cancelling twice is a no-op reporting the current state
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return sub, nil
	}
	if atPeriodEnd && sub.SubscriptionStatus == types.SubscriptionStatusCancelAtPeriodEnd {
		return sub, nil
	}

	if sub.GatewaySubscriptionID == nil || *sub.GatewaySubscriptionID == "" {
		return nil, ierr.NewError("subscription has no gateway reference").
			WithHint("This subscription is not linked to a payment gateway").
			Mark(ierr.ErrNotConfigured)
	}

	subscriber, err := s.SubscriberRepo.Get(ctx, sub.SubscriberID)
	if err != nil {
		return nil, err
	}
	client, err := s.GatewayFactory.GetClient(subscriber.PaymentGateway)
	if err != nil {
		return nil, err
	}

	// gateway first: a gateway failure must leave local state untouched
	// and surface to the caller as-is
	gatewayCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.GatewayTimeout)
	defer cancel()
	if _, err := client.CancelSubscription(gatewayCtx, *sub.GatewaySubscriptionID, atPeriodEnd); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.lockSubscription(txCtx, sub.ID); err != nil {
			return err
		}
		if atPeriodEnd {
			if err := sub.TransitionTo(types.SubscriptionStatusCancelAtPeriodEnd); err != nil {
				return err
			}
		} else {
			if err := sub.TransitionTo(types.SubscriptionStatusCanceled); err != nil {
				return err
			}
			sub.CanceledAt = &now
			if err := s.invoiceService.CancelPending(txCtx, sub.ID); err != nil {
				return err
			}
		}
		return s.SubRepo.Update(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}

	if err := s.Publisher.PublishEvent(ctx, types.NotificationEventSubscriptionCancelled, sub.SubscriberID, map[string]any{
		"subscription_id": sub.ID,
		"at_period_end":   atPeriodEnd,
		"status":          sub.SubscriptionStatus,
	}); err != nil {
		s.Logger.Errorw("failed to publish cancellation event",
			"error", err, "subscription_id", sub.ID)
	}

	s.Logger.Infow("cancelled subscription",
		"subscription_id", sub.ID,
		"at_period_end", atPeriodEnd,
		"status", sub.SubscriptionStatus,
	)
	return sub, nil
}

func (s *subscriptionService) RecordPaymentFailure(ctx context.Context, subscriptionID string, invoiceID *string, reason string) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.lockSubscription(txCtx, subscriptionID); err != nil {
			return err
		}

		var err error
		sub, err = s.SubRepo.Get(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if err := sub.TransitionTo(types.SubscriptionStatusPastDue); err != nil {
			return err
		}

		now := time.Now().UTC()
		sub.PaymentFailedCount++
		if sub.FirstFailedAt == nil {
			sub.FirstFailedAt = &now
		}

		event := &subscription.PaymentFailureEvent{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_FAILURE_EVENT),
			SubscriptionID: sub.ID,
			InvoiceID:      invoiceID,
			AttemptNumber:  sub.PaymentFailedCount,
			Reason:         reason,
			FailedAt:       now,
			BaseModel:      types.GetDefaultBaseModel(txCtx),
		}
		if err := event.Validate(); err != nil {
			return err
		}
		if err := s.FailureEventRepo.Create(txCtx, event); err != nil {
			return err
		}
		return s.SubRepo.Update(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}

	// the day-1 reminder fires with the failure itself; day-3 and the
	// final warning are emitted by the dunning sweep from the event ages
	if sub.PaymentFailedCount == 1 {
		if err := s.Publisher.PublishEvent(ctx, types.NotificationEventPaymentFailedDay1, sub.SubscriberID, map[string]any{
			"subscription_id": sub.ID,
			"reason":          reason,
		}); err != nil {
			s.Logger.Errorw("failed to publish payment failure event",
				"error", err, "subscription_id", sub.ID)
		}
	}

	s.Logger.Warnw("recorded payment failure",
		"subscription_id", sub.ID,
		"attempt_number", sub.PaymentFailedCount,
		"reason", reason,
	)
	return sub, nil
}

func (s *subscriptionService) MarkPaymentSucceeded(ctx context.Context, subscriptionID string, paidAt time.Time) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	wasSuspended := sub.SubscriptionStatus == types.SubscriptionStatusSuspended

	// pending cancellations keep their status: the payment settles the
	// final period but does not revive the subscription
	if sub.SubscriptionStatus != types.SubscriptionStatusCancelAtPeriodEnd {
		if err := sub.TransitionTo(types.SubscriptionStatusActive); err != nil {
			return nil, err
		}
	}

	periodStart := paidAt
	periodEnd := types.NextBillingPeriod(periodStart)
	sub.CurrentPeriodStart = &periodStart
	sub.CurrentPeriodEnd = &periodEnd
	sub.NextBillingDate = &periodEnd
	sub.PaymentFailedCount = 0
	sub.FirstFailedAt = nil
	sub.SuspendedAt = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.FailureEventRepo.ResolveAll(ctx, sub.ID, paidAt); err != nil {
		return nil, err
	}

	if wasSuspended {
		if err := s.Publisher.PublishEvent(ctx, types.NotificationEventAccountReactivated, sub.SubscriberID, map[string]any{
			"subscription_id": sub.ID,
		}); err != nil {
			s.Logger.Errorw("failed to publish reactivation event",
				"error", err, "subscription_id", sub.ID)
		}
	}
	return sub, nil
}

func (s *subscriptionService) Suspend(ctx context.Context, subscriptionID string, now time.Time) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.lockSubscription(txCtx, subscriptionID); err != nil {
			return err
		}

		var err error
		sub, err = s.SubRepo.Get(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if err := sub.TransitionTo(types.SubscriptionStatusSuspended); err != nil {
			return err
		}
		sub.SuspendedAt = &now
		return s.SubRepo.Update(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}

	if err := s.Publisher.PublishEvent(ctx, types.NotificationEventAccountSuspended, sub.SubscriberID, map[string]any{
		"subscription_id": sub.ID,
		"suspended_at":    now,
	}); err != nil {
		s.Logger.Errorw("failed to publish suspension event",
			"error", err, "subscription_id", sub.ID)
	}

	s.Logger.Warnw("suspended subscription",
		"subscription_id", sub.ID,
		"failed_count", sub.PaymentFailedCount,
	)
	return sub, nil
}

func (s *subscriptionService) FinalizePeriodEnd(ctx context.Context, subscriptionID string, now time.Time) (*subscription.Subscription, error) {
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.lockSubscription(txCtx, subscriptionID); err != nil {
			return err
		}

		var err error
		sub, err = s.SubRepo.Get(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus != types.SubscriptionStatusCancelAtPeriodEnd {
			return ierr.NewError("subscription is not pending cancellation").
				WithHintf("Subscription %s is %s", sub.ID, sub.SubscriptionStatus).
				Mark(ierr.ErrInvalidOperation)
		}
		if sub.CurrentPeriodEnd != nil && now.Before(*sub.CurrentPeriodEnd) {
			return ierr.NewError("billing period has not ended").
				WithHintf("Subscription %s is usable until %s", sub.ID, sub.CurrentPeriodEnd.Format(time.RFC3339)).
				Mark(ierr.ErrInvalidOperation)
		}

		if err := sub.TransitionTo(types.SubscriptionStatusCanceled); err != nil {
			return err
		}
		canceledAt := now
		if sub.CurrentPeriodEnd != nil {
			canceledAt = *sub.CurrentPeriodEnd
		}
		sub.CanceledAt = &canceledAt
		sub.NextBillingDate = nil

		if err := s.invoiceService.CancelPending(txCtx, sub.ID); err != nil {
			return err
		}
		return s.SubRepo.Update(txCtx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) GenerateDueInvoices(ctx context.Context, now time.Time) ([]*invoice.Invoice, error) {
	due, err := s.SubRepo.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	var generated []*invoice.Invoice
	for _, sub := range due {
		billingDate := now
		if sub.NextBillingDate != nil {
			billingDate = *sub.NextBillingDate
		}
		inv, err := s.invoiceService.GenerateInvoice(ctx, sub, billingDate)
		if err != nil {
			s.Logger.Errorw("failed to generate renewal invoice",
				"error", err,
				"subscription_id", sub.ID,
				"billing_date", billingDate,
			)
			continue
		}
		generated = append(generated, inv)
	}
	return generated, nil
}
