package repository

import "context"

// Tx is an opaque, infra-defined transaction handle (pgx.Tx, *sql.Tx).
// Repositories MUST accept a nil Tx as the non-transactional path.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a transaction and hands the handle to the
// repositories called with it. A non-nil error from fn rolls back.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
