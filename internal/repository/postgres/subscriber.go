package postgres

import (
	"context"
	"time"

	domainSubscriber "github.com/developer-chetaru/tribe365-billing/internal/domain/subscriber"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
)

type subscriberRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewSubscriberRepository(client postgres.IClient, log *logger.Logger) domainSubscriber.Repository {
	return &subscriberRepository{
		client: client,
		log:    log,
	}
}

func (r *subscriberRepository) Create(ctx context.Context, s *domainSubscriber.Subscriber) error {
	client := r.client.Querier(ctx)

	r.log.Debugw("creating subscriber",
		"subscriber_id", s.ID,
		"tenant_id", s.TenantID,
		"owner_type", s.OwnerType,
		"owner_id", s.OwnerID,
	)

	const query = `
		INSERT INTO subscribers (
			id, owner_type, owner_id, name, email,
			payment_gateway, gateway_customer_id, active_user_count,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :owner_type, :owner_id, :name, :email,
			:payment_gateway, :gateway_customer_id, :active_user_count,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := client.NamedExecContext(ctx, query, s); err != nil {
		if isUniqueViolation(err, "") {
			return ierr.WithError(err).
				WithHint("A subscriber already exists for this owner").
				WithReportableDetails(map[string]any{
					"owner_type": s.OwnerType,
					"owner_id":   s.OwnerID,
				}).
				Mark(ierr.ErrAlreadyProcessed)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscriber").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriberRepository) Get(ctx context.Context, id string) (*domainSubscriber.Subscriber, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM subscribers
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var s domainSubscriber.Subscriber
	err := client.GetContext(ctx, &s, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Subscriber with ID %s was not found", id).
				WithReportableDetails(map[string]any{"subscriber_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscriber").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriberRepository) GetByOwner(ctx context.Context, ownerType types.SubscriberOwnerType, ownerID string) (*domainSubscriber.Subscriber, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM subscribers
		WHERE owner_type = $1 AND owner_id = $2 AND tenant_id = $3 AND status != $4`

	var s domainSubscriber.Subscriber
	err := client.GetContext(ctx, &s, query, ownerType, ownerID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("No subscriber found for %s %s", ownerType, ownerID).
				WithReportableDetails(map[string]any{
					"owner_type": ownerType,
					"owner_id":   ownerID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscriber by owner").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriberRepository) Update(ctx context.Context, s *domainSubscriber.Subscriber) error {
	client := r.client.Querier(ctx)

	s.UpdatedAt = time.Now().UTC()
	s.UpdatedBy = types.GetUserID(ctx)

	const query = `
		UPDATE subscribers SET
			name = :name,
			email = :email,
			payment_gateway = :payment_gateway,
			gateway_customer_id = :gateway_customer_id,
			active_user_count = :active_user_count,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := client.NamedExecContext(ctx, query, s)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscriber").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewError("subscriber not found").
			WithHintf("Subscriber with ID %s was not found", s.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
