package postgres

import (
	"context"
	"time"

	domainPayment "github.com/developer-chetaru/tribe365-billing/internal/domain/payment"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/jmoiron/sqlx"
)

type paymentRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewPaymentRepository(client postgres.IClient, log *logger.Logger) domainPayment.Repository {
	return &paymentRepository{
		client: client,
		log:    log,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *domainPayment.Payment) error {
	client := r.client.Querier(ctx)

	r.log.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"gateway_transaction_id", p.GatewayTransactionID,
		"amount", p.Amount,
	)

	const query = `
		INSERT INTO payments (
			id, invoice_id, subscriber_id, payment_method, amount, currency,
			gateway_transaction_id, payment_status, payment_date, refunded_at,
			notes, proof_path,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :invoice_id, :subscriber_id, :payment_method, :amount, :currency,
			:gateway_transaction_id, :payment_status, :payment_date, :refunded_at,
			:notes, :proof_path,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := client.NamedExecContext(ctx, query, p); err != nil {
		// the unique (invoice_id, gateway_transaction_id) index is the
		// idempotency backstop: a concurrent confirmation that lost the
		// race lands here
		if isUniqueViolation(err, "") {
			return ierr.WithError(err).
				WithHint("This gateway transaction has already been applied to the invoice").
				WithReportableDetails(map[string]any{
					"invoice_id":             p.InvoiceID,
					"gateway_transaction_id": p.GatewayTransactionID,
				}).
				Mark(ierr.ErrAlreadyProcessed)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*domainPayment.Payment, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM payments
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var p domainPayment.Payment
	err := client.GetContext(ctx, &p, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Payment with ID %s was not found", id).
				WithReportableDetails(map[string]any{"payment_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *domainPayment.Payment) error {
	client := r.client.Querier(ctx)

	p.UpdatedAt = time.Now().UTC()
	p.UpdatedBy = types.GetUserID(ctx)

	const query = `
		UPDATE payments SET
			payment_status = :payment_status,
			refunded_at = :refunded_at,
			notes = :notes,
			proof_path = :proof_path,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := client.NamedExecContext(ctx, query, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewError("payment not found").
			WithHintf("Payment with ID %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*domainPayment.Payment, error) {
	client := r.client.Querier(ctx)

	query := `
		SELECT * FROM payments
		WHERE tenant_id = ? AND status != ?`
	args := []any{types.GetTenantID(ctx), types.StatusDeleted}

	if filter != nil {
		if filter.InvoiceID != "" {
			query += ` AND invoice_id = ?`
			args = append(args, filter.InvoiceID)
		}
		if filter.SubscriberID != "" {
			query += ` AND subscriber_id = ?`
			args = append(args, filter.SubscriberID)
		}
		if len(filter.Statuses) > 0 {
			query += ` AND payment_status IN (?)`
			args = append(args, filter.Statuses)
		}
	}
	query += ` ORDER BY payment_date DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build payment query").
			Mark(ierr.ErrDatabase)
	}

	var payments []*domainPayment.Payment
	if err := client.SelectContext(ctx, &payments, client.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}

func (r *paymentRepository) GetByGatewayTransactionID(ctx context.Context, invoiceID, gatewayTransactionID string) (*domainPayment.Payment, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM payments
		WHERE invoice_id = $1 AND gateway_transaction_id = $2
		  AND tenant_id = $3 AND status != $4`

	var p domainPayment.Payment
	err := client.GetContext(ctx, &p, query,
		invoiceID, gatewayTransactionID, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("No payment found for this gateway transaction").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment by gateway transaction").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}
