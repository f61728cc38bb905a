package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"koroflow/internal/database"
	"koroflow/pkg/platform/tx"
)

// Runner wraps a workflow in one SQL transaction. The callback gets an
// adapter bound to the transaction; the transaction is also placed in the
// context so nested code can detect it.
type Runner struct {
	db      *sql.DB
	adapter *Adapter
}

func NewRunner(db *sql.DB, adapter *Adapter) *Runner {
	return &Runner{db: db, adapter: adapter}
}

func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context, a database.Adapter) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := tx.WithTx(ctx, sqlTx)
	if err := fn(txCtx, r.adapter.WithTx(sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
