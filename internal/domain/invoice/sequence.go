package invoice

import (
	"time"
)

// Sequence tracks a tenant's invoice number counter for one billing month
// (the YYYYMM bucket of the invoice number).
type Sequence struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	YearMonth string    `db:"year_month"`
	LastValue int64     `db:"last_value"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
