package database

import "context"

// Runner executes a function against a transactional view of an adapter.
// The SQL implementation binds the adapter to a database transaction; the
// in-memory implementation serializes the function under a lock. The
// callback receives the context to use and the adapter to write through.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, a Adapter) error) error
}

type txKey struct{}

var txKeyCtx = txKey{}

// WithTxKey marks the context with the identity a unit of work operates on.
// Lock-based runners use it to pick a lock shard; SQL runners ignore it.
func WithTxKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, txKeyCtx, key)
}

// TxKey returns the identity set by WithTxKey, if any.
func TxKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(txKeyCtx).(string)
	return key, ok
}
