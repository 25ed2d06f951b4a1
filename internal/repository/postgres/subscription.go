package postgres

import (
	"context"
	"time"

	domainSubscription "github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/jmoiron/sqlx"
)

type subscriptionRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewSubscriptionRepository(client postgres.IClient, log *logger.Logger) domainSubscription.Repository {
	return &subscriptionRepository{
		client: client,
		log:    log,
	}
}

func (r *subscriptionRepository) Create(ctx context.Context, s *domainSubscription.Subscription) error {
	client := r.client.Querier(ctx)

	r.log.Debugw("creating subscription",
		"subscription_id", s.ID,
		"subscriber_id", s.SubscriberID,
		"tier", s.Tier,
		"user_count", s.UserCount,
	)

	const query = `
		INSERT INTO subscriptions (
			id, subscriber_id, tier, user_count, subscription_status,
			current_period_start, current_period_end, next_billing_date,
			gateway_subscription_id, payment_failed_count, first_failed_at,
			activated_at, canceled_at, suspended_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :subscriber_id, :tier, :user_count, :subscription_status,
			:current_period_start, :current_period_end, :next_billing_date,
			:gateway_subscription_id, :payment_failed_count, :first_failed_at,
			:activated_at, :canceled_at, :suspended_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := client.NamedExecContext(ctx, query, s); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*domainSubscription.Subscription, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM subscriptions
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var s domainSubscription.Subscription
	err := client.GetContext(ctx, &s, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription with ID %s was not found", id).
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *domainSubscription.Subscription) error {
	client := r.client.Querier(ctx)

	s.UpdatedAt = time.Now().UTC()
	s.UpdatedBy = types.GetUserID(ctx)

	const query = `
		UPDATE subscriptions SET
			tier = :tier,
			user_count = :user_count,
			subscription_status = :subscription_status,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			next_billing_date = :next_billing_date,
			gateway_subscription_id = :gateway_subscription_id,
			payment_failed_count = :payment_failed_count,
			first_failed_at = :first_failed_at,
			activated_at = :activated_at,
			canceled_at = :canceled_at,
			suspended_at = :suspended_at,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := client.NamedExecContext(ctx, query, s)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", s.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*domainSubscription.Subscription, error) {
	client := r.client.Querier(ctx)

	query := `
		SELECT * FROM subscriptions
		WHERE tenant_id = ? AND status != ?`
	args := []any{types.GetTenantID(ctx), types.StatusDeleted}

	if filter != nil {
		if filter.SubscriberID != "" {
			query += ` AND subscriber_id = ?`
			args = append(args, filter.SubscriberID)
		}
		if filter.Tier != nil {
			query += ` AND tier = ?`
			args = append(args, *filter.Tier)
		}
		if len(filter.Statuses) > 0 {
			query += ` AND subscription_status IN (?)`
			args = append(args, filter.Statuses)
		}
	}
	query += ` ORDER BY created_at DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build subscription query").
			Mark(ierr.ErrDatabase)
	}

	var subscriptions []*domainSubscription.Subscription
	if err := client.SelectContext(ctx, &subscriptions, client.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subscriptions, nil
}

func (r *subscriptionRepository) GetActiveBySubscriberAndTier(ctx context.Context, subscriberID string, tier types.SubscriptionTier) (*domainSubscription.Subscription, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM subscriptions
		WHERE subscriber_id = $1 AND tier = $2
		  AND subscription_status != $3
		  AND tenant_id = $4 AND status != $5
		ORDER BY created_at DESC
		LIMIT 1`

	var s domainSubscription.Subscription
	err := client.GetContext(ctx, &s, query,
		subscriberID, tier, types.SubscriptionStatusCanceled,
		types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("No active %s subscription found for subscriber %s", tier, subscriberID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription by subscriber and tier").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriptionRepository) GetByGatewaySubscriptionID(ctx context.Context, gatewaySubscriptionID string) (*domainSubscription.Subscription, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM subscriptions
		WHERE gateway_subscription_id = $1
		  AND tenant_id = $2 AND status != $3
		ORDER BY created_at DESC
		LIMIT 1`

	var s domainSubscription.Subscription
	err := client.GetContext(ctx, &s, query,
		gatewaySubscriptionID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("No subscription found for gateway reference %s", gatewaySubscriptionID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription by gateway reference").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriptionRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domainSubscription.Subscription, error) {
	client := r.client.Querier(ctx)

	// past_due stays billable: the invoice already exists and dunning
	// owns the retry, but a pending cancellation still renews until its
	// period ends.
	const query = `
		SELECT * FROM subscriptions
		WHERE next_billing_date IS NOT NULL AND next_billing_date <= $1
		  AND subscription_status IN ($2, $3)
		  AND tenant_id = $4 AND status != $5
		ORDER BY next_billing_date ASC`

	var subscriptions []*domainSubscription.Subscription
	err := client.SelectContext(ctx, &subscriptions, query,
		asOf,
		types.SubscriptionStatusActive, types.SubscriptionStatusCancelAtPeriodEnd,
		types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subscriptions, nil
}
