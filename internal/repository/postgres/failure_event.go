package postgres

import (
	"context"
	"time"

	domainSubscription "github.com/developer-chetaru/tribe365-billing/internal/domain/subscription"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

type failureEventRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewFailureEventRepository(client postgres.IClient, log *logger.Logger) domainSubscription.FailureEventRepository {
	return &failureEventRepository{
		client: client,
		log:    log,
	}
}

func (r *failureEventRepository) Create(ctx context.Context, event *domainSubscription.PaymentFailureEvent) error {
	client := r.client.Querier(ctx)

	r.log.Debugw("recording payment failure event",
		"event_id", event.ID,
		"subscription_id", event.SubscriptionID,
		"attempt_number", event.AttemptNumber,
	)

	const query = `
		INSERT INTO payment_failure_events (
			id, subscription_id, invoice_id, attempt_number, reason,
			failed_at, resolved, resolved_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :subscription_id, :invoice_id, :attempt_number, :reason,
			:failed_at, :resolved, :resolved_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := client.NamedExecContext(ctx, query, event); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record payment failure event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *failureEventRepository) ListUnresolved(ctx context.Context, subscriptionID string) ([]*domainSubscription.PaymentFailureEvent, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM payment_failure_events
		WHERE subscription_id = $1 AND resolved = false
		  AND tenant_id = $2 AND status != $3
		ORDER BY failed_at ASC`

	var events []*domainSubscription.PaymentFailureEvent
	err := client.SelectContext(ctx, &events, query,
		subscriptionID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list unresolved failure events").
			Mark(ierr.ErrDatabase)
	}
	return events, nil
}

func (r *failureEventRepository) ResolveAll(ctx context.Context, subscriptionID string, resolvedAt time.Time) error {
	client := r.client.Querier(ctx)

	const query = `
		UPDATE payment_failure_events SET
			resolved = true,
			resolved_at = $1,
			updated_at = $2,
			updated_by = $3
		WHERE subscription_id = $4 AND resolved = false AND tenant_id = $5`

	_, err := client.ExecContext(ctx, query,
		resolvedAt, time.Now().UTC(), types.GetUserID(ctx),
		subscriptionID, types.GetTenantID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to resolve failure events").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
