// Package memory implements the adapter contract over process memory. It
// backs unit tests and development setups and doubles as the reference
// implementation of contract semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"koroflow/internal/database"
	"koroflow/internal/schema"
	"koroflow/internal/transform"
	"koroflow/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	resolver *schema.Resolver
	tr       *transform.Transformer
	rows     map[string][]database.Row
}

var _ database.Adapter = (*Store)(nil)

// New builds an in-memory adapter. The zero transform.Caps keeps values in
// native form end to end.
func New(resolver *schema.Resolver, ids database.IDConfig) *Store {
	return &Store{
		resolver: resolver,
		tr:       transform.New(transform.Caps{}, ids),
		rows:     make(map[string][]database.Row),
	}
}

func (s *Store) Create(ctx context.Context, model string, data database.Row, selected []string) (database.Row, error) {
	table, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	row, err := s.tr.Input(table, data, transform.ActionCreate)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rows[model] = append(s.rows[model], cloneRow(row))
	s.mu.Unlock()

	return s.tr.Output(table, row, selected)
}

func (s *Store) FindOne(ctx context.Context, model string, where database.Where, selected []string) (database.Row, error) {
	table, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	matches, err := s.matching(model, where)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("find %s: %w", model, sentinel.ErrNotFound)
	}
	return s.tr.Output(table, matches[0], selected)
}

func (s *Store) FindMany(ctx context.Context, model string, opts database.FindManyOptions) ([]database.Row, error) {
	table, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	matches, err := s.matching(model, opts.Where)
	if err != nil {
		return nil, err
	}

	// Offset without an explicit sort still needs a stable order: fall back
	// to identifier ordering.
	sortBy := opts.SortBy
	if sortBy == nil {
		sortBy = &database.Sort{Field: "id", Direction: database.Asc}
	}
	sortRows(matches, *sortBy)

	limit := opts.Limit
	if limit <= 0 {
		limit = database.DefaultLimit
	}
	if opts.Offset >= len(matches) {
		return []database.Row{}, nil
	}
	matches = matches[opts.Offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]database.Row, 0, len(matches))
	for _, row := range matches {
		shaped, err := s.tr.Output(table, row, opts.Select)
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, model string, where database.Where, change database.Row) (database.Row, error) {
	rows, err := s.applyUpdate(model, where, change, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s: %w", model, sentinel.ErrNotFound)
	}
	return rows[0], nil
}

func (s *Store) UpdateMany(ctx context.Context, model string, where database.Where, change database.Row) ([]database.Row, error) {
	return s.applyUpdate(model, where, change, 0)
}

func (s *Store) Count(ctx context.Context, model string, where database.Where) (int64, error) {
	if _, err := s.resolver.Resolve(model); err != nil {
		return 0, err
	}
	matches, err := s.matching(model, where)
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

func (s *Store) Delete(ctx context.Context, model string, where database.Where) error {
	_, err := s.remove(model, where, 1)
	return err
}

func (s *Store) DeleteMany(ctx context.Context, model string, where database.Where) (int64, error) {
	return s.remove(model, where, 0)
}

// matching snapshots all rows of the model that satisfy the where list.
func (s *Store) matching(model string, where database.Where) ([]database.Row, error) {
	connector, err := where.Uniform()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.Row
	for _, row := range s.rows[model] {
		ok, err := matches(row, where, connector)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cloneRow(row))
		}
	}
	return out, nil
}

// applyUpdate mutates up to max matching rows (0 means all) and returns the
// shaped results.
func (s *Store) applyUpdate(model string, where database.Where, change database.Row, max int) ([]database.Row, error) {
	table, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	connector, err := where.Uniform()
	if err != nil {
		return nil, err
	}
	delta, err := s.tr.Input(table, change, transform.ActionUpdate)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.Row
	for i, row := range s.rows[model] {
		ok, err := matches(row, where, connector)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for key, value := range delta {
			row[key] = value
		}
		s.rows[model][i] = row
		shaped, err := s.tr.Output(table, cloneRow(row), nil)
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (s *Store) remove(model string, where database.Where, max int) (int64, error) {
	if _, err := s.resolver.Resolve(model); err != nil {
		return 0, err
	}
	connector, err := where.Uniform()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[model][:0]
	var removed int64
	for _, row := range s.rows[model] {
		ok, err := matches(row, where, connector)
		if err != nil {
			return removed, err
		}
		if ok && (max == 0 || removed < int64(max)) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.rows[model] = kept
	return removed, nil
}

func matches(row database.Row, where database.Where, connector database.Connector) (bool, error) {
	if len(where) == 0 {
		return true, nil
	}
	for _, cond := range where {
		ok, err := evaluate(row[cond.Field], cond)
		if err != nil {
			return false, err
		}
		if connector == database.Or && ok {
			return true, nil
		}
		if connector == database.And && !ok {
			return false, nil
		}
	}
	return connector == database.And, nil
}

func evaluate(have any, cond database.Condition) (bool, error) {
	switch cond.Operator {
	case database.OpEq, "":
		return equal(have, cond.Value), nil
	case database.OpNe:
		return !equal(have, cond.Value), nil
	case database.OpLt, database.OpLte, database.OpGt, database.OpGte:
		c, err := compare(have, cond.Value)
		if err != nil {
			return false, err
		}
		switch cond.Operator {
		case database.OpLt:
			return c < 0, nil
		case database.OpLte:
			return c <= 0, nil
		case database.OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case database.OpIn:
		return contains(cond.Value, have)
	case database.OpContains, database.OpStartsWith, database.OpEndsWith:
		s, ok := have.(string)
		sub, ok2 := cond.Value.(string)
		if !ok || !ok2 {
			return false, nil
		}
		switch cond.Operator {
		case database.OpContains:
			return strings.Contains(s, sub), nil
		case database.OpStartsWith:
			return strings.HasPrefix(s, sub), nil
		default:
			return strings.HasSuffix(s, sub), nil
		}
	default:
		return false, fmt.Errorf("memory: unsupported operator %q", cond.Operator)
	}
}

func equal(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	if c, err := compare(a, b); err == nil {
		return c == 0
	}
	return a == b
}

func compare(a, b any) (int, error) {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("memory: cannot compare time with %T", b)
		}
		return at.Compare(bt), nil
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("memory: cannot compare string with %T", b)
		}
		return strings.Compare(as, bs), nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, fmt.Errorf("memory: cannot order %T against %T", a, b)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func contains(list, needle any) (bool, error) {
	switch items := list.(type) {
	case []string:
		s, ok := needle.(string)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if item == s {
				return true, nil
			}
		}
		return false, nil
	case []any:
		for _, item := range items {
			if equal(item, needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("memory: in operator needs a slice, got %T", list)
	}
}

func sortRows(rows []database.Row, by database.Sort) {
	sort.SliceStable(rows, func(i, j int) bool {
		c, err := compare(rows[i][by.Field], rows[j][by.Field])
		if err != nil {
			return false
		}
		if by.Direction == database.Desc {
			return c > 0
		}
		return c < 0
	})
}

func cloneRow(row database.Row) database.Row {
	out := make(database.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
