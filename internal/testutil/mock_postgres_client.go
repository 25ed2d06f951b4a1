package testutil

import (
	"context"
	"database/sql"

	"github.com/developer-chetaru/tribe365-billing/internal/logger"
	"github.com/developer-chetaru/tribe365-billing/internal/postgres"
	"github.com/jmoiron/sqlx"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

type txMarkerKey struct{}

// TxStore is implemented by in-memory stores that participate in the mock
// client's transactions.
type TxStore interface {
	SnapshotState() any
	RestoreState(snapshot any)
}

// MockPostgresClient mimics the transactional postgres client in memory.
// WithTx snapshots every registered store up front and restores them when
// the closure fails, so rollback tests see real all-or-nothing behavior.
type MockPostgresClient struct {
	logger *logger.Logger
	stores []TxStore
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger, stores ...TxStore) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
		stores: stores,
	}
}

// RegisterStore attaches a store to the transaction scope
func (c *MockPostgresClient) RegisterStore(store TxStore) {
	c.stores = append(c.stores, store)
}

// WithTx executes the given function, rolling back all registered stores
// when it errors
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// already inside a transaction: reuse it
	if inTx, ok := ctx.Value(txMarkerKey{}).(bool); ok && inTx {
		return fn(ctx)
	}

	snapshots := make([]any, len(c.stores))
	for i, store := range c.stores {
		snapshots[i] = store.SnapshotState()
	}

	txCtx := context.WithValue(ctx, txMarkerKey{}, true)
	if err := fn(txCtx); err != nil {
		for i, store := range c.stores {
			store.RestoreState(snapshots[i])
		}
		return err
	}
	return nil
}

// TxFromContext always returns nil; the mock has no sqlx transactions
func (c *MockPostgresClient) TxFromContext(ctx context.Context) *sqlx.Tx {
	return nil
}

// Querier returns a stub; in-memory repositories never touch SQL, only
// the advisory-lock helper calls ExecContext and that is a no-op here
func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return noopQuerier{}
}

type noopQuerier struct{}

type noopResult struct{}

func (noopResult) LastInsertId() (int64, error) { return 0, nil }
func (noopResult) RowsAffected() (int64, error) { return 1, nil }

func (noopQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sql.ErrNoRows
}

func (noopQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func (noopQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return noopResult{}, nil
}

func (noopQuerier) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return nil
}

func (noopQuerier) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return noopResult{}, nil
}

func (noopQuerier) Rebind(query string) string {
	return query
}
