package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"koroflow/internal/database"
	"koroflow/internal/schema"
	"koroflow/internal/transform"
	"koroflow/pkg/platform/sentinel"
)

// Querier is the subset of database/sql used by the adapter. Both *sql.DB
// and *sql.Tx satisfy it, so a unit-of-work can rebind the adapter onto a
// transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Adapter implements the generic contract against one SQL dialect. The
// dialect strategy is fixed at construction.
type Adapter struct {
	q        Querier
	dialect  Dialect
	resolver *schema.Resolver
	tr       *transform.Transformer
	tracer   trace.Tracer
}

var _ database.Adapter = (*Adapter)(nil)

func New(q Querier, dialect Dialect, resolver *schema.Resolver, ids database.IDConfig) *Adapter {
	return &Adapter{
		q:        q,
		dialect:  dialect,
		resolver: resolver,
		tr:       transform.New(dialect.Caps(), ids),
		tracer:   otel.Tracer("koroflow/sqlstore"),
	}
}

// WithTx returns a copy of the adapter bound to the given transaction.
func (a *Adapter) WithTx(tx *sql.Tx) *Adapter {
	clone := *a
	clone.q = tx
	return &clone
}

// Dialect exposes the strategy, mainly for wiring and tests.
func (a *Adapter) Dialect() Dialect { return a.dialect }

func (a *Adapter) span(ctx context.Context, op, model string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, "sqlstore."+op, trace.WithAttributes(
		attribute.String("db.system", a.dialect.Name()),
		attribute.String("db.model", model),
	))
}

func (a *Adapter) Create(ctx context.Context, model string, data database.Row, selected []string) (database.Row, error) {
	ctx, span := a.span(ctx, "create", model)
	defer span.End()

	table, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	input, err := a.tr.Input(table, data, transform.ActionCreate)
	if err != nil {
		return nil, err
	}
	columns, placeholders, args := a.insertParts(table, input)

	switch a.dialect.Returning() {
	case ReturningClause:
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			a.dialect.Quote(table.Name), columns, placeholders, returnedColumns(a.dialect, table))
		row, err := a.queryOne(ctx, table, query, args)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", model, err)
		}
		return a.tr.Output(table, row, selected)

	case OutputClause:
		query := fmt.Sprintf("INSERT INTO %s (%s) OUTPUT %s VALUES (%s)",
			a.dialect.Quote(table.Name), columns, outputColumns(a.dialect, table), placeholders)
		row, err := a.queryOne(ctx, table, query, args)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", model, err)
		}
		return a.tr.Output(table, row, selected)

	default:
		// No RETURNING: insert, then select by natural key — the explicit id
		// when the application minted one, else the first inserted field.
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			a.dialect.Quote(table.Name), columns, placeholders)
		if _, err := a.q.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("create %s: %w", model, err)
		}
		key, value, ok := naturalKey(table, input)
		if !ok {
			return nil, fmt.Errorf("create %s: no natural key to select inserted row", model)
		}
		row, err := a.findOneRaw(ctx, table, key, value)
		if err != nil {
			return nil, fmt.Errorf("create %s: select after insert: %w", model, err)
		}
		return a.tr.Output(table, row, selected)
	}
}

func (a *Adapter) FindOne(ctx context.Context, model string, where database.Where, selected []string) (database.Row, error) {
	ctx, span := a.span(ctx, "find_one", model)
	defer span.End()

	table, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	rows, err := a.selectRows(ctx, table, where, database.FindManyOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", model, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("find %s: %w", model, sentinel.ErrNotFound)
	}
	return a.tr.Output(table, rows[0], selected)
}

func (a *Adapter) FindMany(ctx context.Context, model string, opts database.FindManyOptions) ([]database.Row, error) {
	ctx, span := a.span(ctx, "find_many", model)
	defer span.End()

	table, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = database.DefaultLimit
	}
	rows, err := a.selectRows(ctx, table, opts.Where, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", model, err)
	}
	out := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		shaped, err := a.tr.Output(table, row, opts.Select)
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	return out, nil
}

// Update rewrites the rows selected by where and returns the first rewritten
// row. Callers are expected to pass a where that selects at most one row;
// UpdateMany is the bulk variant.
func (a *Adapter) Update(ctx context.Context, model string, where database.Where, change database.Row) (database.Row, error) {
	rows, err := a.updateRows(ctx, "update", model, where, change, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s: %w", model, sentinel.ErrNotFound)
	}
	return rows[0], nil
}

func (a *Adapter) UpdateMany(ctx context.Context, model string, where database.Where, change database.Row) ([]database.Row, error) {
	return a.updateRows(ctx, "update_many", model, where, change, false)
}

func (a *Adapter) Count(ctx context.Context, model string, where database.Where) (int64, error) {
	ctx, span := a.span(ctx, "count", model)
	defer span.End()

	table, err := a.resolver.Resolve(model)
	if err != nil {
		return 0, err
	}
	pred, err := predicate(a.dialect, table, where, 0)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + a.dialect.Quote(table.Name)
	if pred.sql != "" {
		query += " WHERE " + pred.sql
	}
	rows, err := a.q.QueryContext(ctx, query, pred.args...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", model, err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", model, err)
		}
	}
	return n, rows.Err()
}

func (a *Adapter) Delete(ctx context.Context, model string, where database.Where) error {
	_, err := a.deleteRows(ctx, "delete", model, where)
	return err
}

func (a *Adapter) DeleteMany(ctx context.Context, model string, where database.Where) (int64, error) {
	return a.deleteRows(ctx, "delete_many", model, where)
}

// ---- internals ----

// insertParts renders column and placeholder lists for an insert, id first,
// remaining fields in declaration order.
func (a *Adapter) insertParts(table schema.Table, input database.Row) (columns, placeholders string, args []any) {
	cols := make([]string, 0, len(input))
	phs := make([]string, 0, len(input))
	n := 0
	add := func(column string, value any) {
		n++
		cols = append(cols, a.dialect.Quote(column))
		phs = append(phs, a.dialect.Placeholder(n))
		args = append(args, value)
	}
	if id, ok := input["id"]; ok {
		add("id", id)
	}
	for _, key := range table.Order {
		value, ok := input[key]
		if !ok {
			continue
		}
		column, _ := table.Column(key)
		add(column, value)
	}
	return strings.Join(cols, ", "), strings.Join(phs, ", "), args
}

// naturalKey picks the logical key used to re-select an inserted row on
// engines without RETURNING: the explicit id, else the first unique field
// present, else the first inserted field.
func naturalKey(table schema.Table, input database.Row) (string, any, bool) {
	if id, ok := input["id"]; ok {
		return "id", id, true
	}
	for _, key := range table.Order {
		if field := table.Fields[key]; field.Unique {
			if v, ok := input[key]; ok {
				return key, v, true
			}
		}
	}
	for _, key := range table.Order {
		if v, ok := input[key]; ok {
			return key, v, true
		}
	}
	return "", nil, false
}

// findOneRaw selects a single row by one column holding an already
// storage-form value, bypassing condition transformation.
func (a *Adapter) findOneRaw(ctx context.Context, table schema.Table, key string, value any) (database.Row, error) {
	column, _ := table.Column(key)
	query := fmt.Sprintf("SELECT %s%s FROM %s WHERE %s = %s%s",
		a.dialect.Top(1, 0),
		returnedColumns(a.dialect, table),
		a.dialect.Quote(table.Name),
		a.dialect.Quote(column),
		a.dialect.Placeholder(1),
		a.dialect.LimitOffset(1, 0))
	rows, err := a.queryMaps(ctx, table, query, []any{value})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return rows[0], nil
}

// selectRows builds and runs a SELECT honoring the dialect's pagination
// idiom. Offset without an explicit sort gets identifier ordering injected;
// some dialects cannot OFFSET without an ORDER BY at all.
func (a *Adapter) selectRows(ctx context.Context, table schema.Table, where database.Where, opts database.FindManyOptions) ([]database.Row, error) {
	pred, err := predicate(a.dialect, table, where, 0)
	if err != nil {
		return nil, err
	}

	// Offset without an explicit sort must still be stable, and some engines
	// reject OFFSET without ORDER BY outright; inject identifier ordering.
	sortBy := opts.SortBy
	if sortBy == nil && opts.Offset > 0 {
		sortBy = &database.Sort{Field: "id", Direction: database.Asc}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(a.dialect.Top(opts.Limit, opts.Offset))
	sb.WriteString(returnedColumns(a.dialect, table))
	sb.WriteString(" FROM ")
	sb.WriteString(a.dialect.Quote(table.Name))
	if pred.sql != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(pred.sql)
	}
	if sortBy != nil {
		column, _, err := resolveField(table, sortBy.Field)
		if err != nil {
			return nil, err
		}
		direction := "ASC"
		if sortBy.Direction == database.Desc {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", a.dialect.Quote(column), direction)
	}
	sb.WriteString(a.dialect.LimitOffset(opts.Limit, opts.Offset))

	return a.queryMaps(ctx, table, sb.String(), pred.args)
}

func (a *Adapter) updateRows(ctx context.Context, op, model string, where database.Where, change database.Row, single bool) ([]database.Row, error) {
	ctx, span := a.span(ctx, op, model)
	defer span.End()

	table, err := a.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	delta, err := a.tr.Input(table, change, transform.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if len(delta) == 0 {
		return nil, fmt.Errorf("update %s: empty change set", model)
	}

	sets := make([]string, 0, len(delta))
	args := make([]any, 0, len(delta))
	n := 0
	for _, key := range table.Order {
		value, ok := delta[key]
		if !ok {
			continue
		}
		column, _ := table.Column(key)
		n++
		sets = append(sets, fmt.Sprintf("%s = %s", a.dialect.Quote(column), a.dialect.Placeholder(n)))
		args = append(args, value)
	}
	setClause := strings.Join(sets, ", ")

	switch a.dialect.Returning() {
	case ReturningClause:
		pred, err := predicate(a.dialect, table, where, n)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf("UPDATE %s SET %s", a.dialect.Quote(table.Name), setClause)
		if pred.sql != "" {
			query += " WHERE " + pred.sql
		}
		query += " RETURNING " + returnedColumns(a.dialect, table)
		rows, err := a.queryMaps(ctx, table, query, append(args, pred.args...))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, model, err)
		}
		return a.shape(table, rows)

	case OutputClause:
		pred, err := predicate(a.dialect, table, where, n)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf("UPDATE %s SET %s OUTPUT %s",
			a.dialect.Quote(table.Name), setClause, outputColumns(a.dialect, table))
		if pred.sql != "" {
			query += " WHERE " + pred.sql
		}
		rows, err := a.queryMaps(ctx, table, query, append(args, pred.args...))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, model, err)
		}
		return a.shape(table, rows)

	default:
		// No RETURNING: pin down the target ids first, update by id, then
		// select the rewritten rows by the same ids.
		ids, err := a.selectIDs(ctx, table, where, single)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, model, err)
		}
		if len(ids) == 0 {
			return []database.Row{}, nil
		}
		placeholders := make([]string, len(ids))
		updateArgs := append([]any{}, args...)
		for i, id := range ids {
			placeholders[i] = a.dialect.Placeholder(n + i + 1)
			updateArgs = append(updateArgs, id)
		}
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)",
			a.dialect.Quote(table.Name), setClause, a.dialect.Quote("id"), strings.Join(placeholders, ", "))
		if _, err := a.q.ExecContext(ctx, query, updateArgs...); err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, model, err)
		}

		selectPlaceholders := make([]string, len(ids))
		for i := range ids {
			selectPlaceholders[i] = a.dialect.Placeholder(i + 1)
		}
		selectQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
			returnedColumns(a.dialect, table), a.dialect.Quote(table.Name),
			a.dialect.Quote("id"), strings.Join(selectPlaceholders, ", "))
		rows, err := a.queryMaps(ctx, table, selectQuery, ids)
		if err != nil {
			return nil, fmt.Errorf("%s %s: select after update: %w", op, model, err)
		}
		return a.shape(table, rows)
	}
}

func (a *Adapter) deleteRows(ctx context.Context, op, model string, where database.Where) (int64, error) {
	ctx, span := a.span(ctx, op, model)
	defer span.End()

	table, err := a.resolver.Resolve(model)
	if err != nil {
		return 0, err
	}
	pred, err := predicate(a.dialect, table, where, 0)
	if err != nil {
		return 0, err
	}
	query := "DELETE FROM " + a.dialect.Quote(table.Name)
	if pred.sql != "" {
		query += " WHERE " + pred.sql
	}
	res, err := a.q.ExecContext(ctx, query, pred.args...)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", op, model, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s: rows affected: %w", op, model, err)
	}
	return affected, nil
}

// selectIDs fetches the ids matched by where (at most one when single).
func (a *Adapter) selectIDs(ctx context.Context, table schema.Table, where database.Where, single bool) ([]any, error) {
	pred, err := predicate(a.dialect, table, where, 0)
	if err != nil {
		return nil, err
	}
	limit := 0
	if single {
		limit = 1
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(a.dialect.Top(limit, 0))
	sb.WriteString(a.dialect.Quote("id"))
	sb.WriteString(" FROM ")
	sb.WriteString(a.dialect.Quote(table.Name))
	if pred.sql != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(pred.sql)
	}
	if limit > 0 {
		sb.WriteString(a.dialect.LimitOffset(limit, 0))
	}
	rows, err := a.q.QueryContext(ctx, sb.String(), pred.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if b, ok := id.([]byte); ok {
			id = string(b)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryOne runs a query expected to yield exactly one row.
func (a *Adapter) queryOne(ctx context.Context, table schema.Table, query string, args []any) (database.Row, error) {
	rows, err := a.queryMaps(ctx, table, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows[0], nil
}

// queryMaps scans result rows into logical-keyed maps. Columns are mapped
// back to logical field keys via the resolved schema; unknown columns keep
// their storage names.
func (a *Adapter) queryMaps(ctx context.Context, table schema.Table, query string, args []any) ([]database.Row, error) {
	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	keyByColumn := make(map[string]string, len(table.Order)+1)
	keyByColumn["id"] = "id"
	for _, key := range table.Order {
		column, _ := table.Column(key)
		keyByColumn[column] = key
	}

	var out []database.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(database.Row, len(cols))
		for i, col := range cols {
			key, ok := keyByColumn[col]
			if !ok {
				key = col
			}
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[key] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (a *Adapter) shape(table schema.Table, rows []database.Row) ([]database.Row, error) {
	out := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		shaped, err := a.tr.Output(table, row, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	return out, nil
}
