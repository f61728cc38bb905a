package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koroflow/internal/database"
	"koroflow/internal/schema"
)

// brokenResult fails RowsAffected, as drivers without affected-row counts do.
type brokenResult struct {
	err error
}

func (r brokenResult) LastInsertId() (int64, error) { return 0, r.err }
func (r brokenResult) RowsAffected() (int64, error) { return 0, r.err }

type brokenResultQuerier struct {
	err error
}

func (q brokenResultQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return brokenResult{err: q.err}, nil
}

func (q brokenResultQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not used")
}

func TestDeleteManySurfacesRowsAffectedError(t *testing.T) {
	resolver, err := schema.NewResolver(schema.Config{})
	require.NoError(t, err)

	driverErr := errors.New("rows affected unsupported")
	adapter := New(brokenResultQuerier{err: driverErr}, SQLite{}, resolver, database.IDConfig{})

	n, err := adapter.DeleteMany(context.Background(), schema.EntityPurpose, database.Eq("code", "analytics"))
	require.ErrorIs(t, err, driverErr)
	assert.Zero(t, n)
}
