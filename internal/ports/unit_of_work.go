package ports

import "context"

// Tx is the transaction handle carried in context. The store adapter owns the
// concrete type.
type Tx interface{}

// UnitOfWork runs fn in one transaction. A returned error rolls back; nil
// commits. Repositories called with the ctx passed to fn join the transaction.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns nil outside a transaction.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
