package postgres

import (
	"context"
	"time"

	domainInvoice "github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/developer-chetaru/tribe365-billing/internal/types"
	"github.com/jmoiron/sqlx"
)

type invoiceRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewInvoiceRepository(client postgres.IClient, log *logger.Logger) domainInvoice.Repository {
	return &invoiceRepository{
		client: client,
		log:    log,
	}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *domainInvoice.Invoice) error {
	client := r.client.Querier(ctx)

	r.log.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", inv.SubscriptionID,
		"total_amount", inv.TotalAmount,
	)

	const query = `
		INSERT INTO invoices (
			id, subscription_id, subscriber_id, invoice_number,
			invoice_date, due_date, user_count, price_per_user, currency,
			subtotal, tax_amount, total_amount, invoice_status, paid_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :subscription_id, :subscriber_id, :invoice_number,
			:invoice_date, :due_date, :user_count, :price_per_user, :currency,
			:subtotal, :tax_amount, :total_amount, :invoice_status, :paid_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := client.NamedExecContext(ctx, query, inv); err != nil {
		// one invoice per (subscriber, subscription, billing date)
		if isUniqueViolation(err, "") {
			return ierr.WithError(err).
				WithHint("An invoice already exists for this billing date").
				WithReportableDetails(map[string]any{
					"subscription_id": inv.SubscriptionID,
					"invoice_date":    inv.InvoiceDate,
				}).
				Mark(ierr.ErrAlreadyProcessed)
		}
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*domainInvoice.Invoice, error) {
	client := r.client.Querier(ctx)

	const query = `
		SELECT * FROM invoices
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var inv domainInvoice.Invoice
	err := client.GetContext(ctx, &inv, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Invoice with ID %s was not found", id).
				WithReportableDetails(map[string]any{"invoice_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *domainInvoice.Invoice) error {
	client := r.client.Querier(ctx)

	inv.UpdatedAt = time.Now().UTC()
	inv.UpdatedBy = types.GetUserID(ctx)

	const query = `
		UPDATE invoices SET
			due_date = :due_date,
			invoice_status = :invoice_status,
			paid_at = :paid_at,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	result, err := client.NamedExecContext(ctx, query, inv)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewError("invoice not found").
			WithHintf("Invoice with ID %s was not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*domainInvoice.Invoice, error) {
	client := r.client.Querier(ctx)

	query := `
		SELECT * FROM invoices
		WHERE tenant_id = ? AND status != ?`
	args := []any{types.GetTenantID(ctx), types.StatusDeleted}

	if filter != nil {
		if filter.SubscriberID != "" {
			query += ` AND subscriber_id = ?`
			args = append(args, filter.SubscriberID)
		}
		if filter.SubscriptionID != "" {
			query += ` AND subscription_id = ?`
			args = append(args, filter.SubscriptionID)
		}
		if len(filter.Statuses) > 0 {
			query += ` AND invoice_status IN (?)`
			args = append(args, filter.Statuses)
		}
		if filter.DueBefore != nil {
			query += ` AND due_date < ?`
			args = append(args, *filter.DueBefore)
		}
	}
	query += ` ORDER BY invoice_date DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build invoice query").
			Mark(ierr.ErrDatabase)
	}

	var invoices []*domainInvoice.Invoice
	if err := client.SelectContext(ctx, &invoices, client.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

func (r *invoiceRepository) GetByBillingDate(ctx context.Context, subscriberID, subscriptionID string, billingDate time.Time) (*domainInvoice.Invoice, error) {
	client := r.client.Querier(ctx)

	// billing date matches at day granularity
	const query = `
		SELECT * FROM invoices
		WHERE subscriber_id = $1 AND subscription_id = $2
		  AND invoice_date::date = $3::date
		  AND tenant_id = $4 AND status != $5`

	var inv domainInvoice.Invoice
	err := client.GetContext(ctx, &inv, query,
		subscriberID, subscriptionID, billingDate,
		types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if isNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("No invoice found for subscription %s on %s", subscriptionID, billingDate.Format("2006-01-02")).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice by billing date").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

// NextSequenceValue upserts the per-month counter row and increments it
// in one statement, so concurrent generators can never hand out the same
// invoice number.
func (r *invoiceRepository) NextSequenceValue(ctx context.Context, yearMonth string) (int64, error) {
	client := r.client.Querier(ctx)

	now := time.Now().UTC()
	const query = `
		INSERT INTO invoice_sequences (id, tenant_id, year_month, last_value, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (tenant_id, year_month)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = $4
		RETURNING last_value`

	var value int64
	err := client.GetContext(ctx, &value, query,
		types.GenerateUUID(), types.GetTenantID(ctx), yearMonth, now)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("Failed to advance invoice sequence for %s", yearMonth).
			Mark(ierr.ErrDatabase)
	}
	return value, nil
}
