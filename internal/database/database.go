// Package database defines the storage-agnostic adapter contract. Every
// backend — the in-memory store used in tests and the dialect-aware SQL
// store — implements Adapter; everything above (hooks, entity adapters,
// workflow) speaks only this contract.
package database

import (
	"context"

	dErrors "koroflow/pkg/domain-errors"
)

// DefaultLimit caps FindMany when no explicit limit is given, preventing
// unbounded scans.
const DefaultLimit = 100

// Operator is a comparison applied to one field.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpIn         Operator = "in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// Connector joins the conditions of one Where list.
type Connector string

const (
	And Connector = "AND"
	Or  Connector = "OR"
)

// Condition is one abstract filter term. Field is the logical field key,
// translated to a storage column by the adapter.
type Condition struct {
	Field     string
	Value     any
	Operator  Operator
	Connector Connector
}

// Where is an ordered condition list. All conditions in one list must share
// a connector; nested AND/OR grouping is out of scope and rejected rather
// than silently misread.
type Where []Condition

// Uniform returns the single connector joining the list. An empty connector
// on a condition means AND. Mixed connectors are a validation error.
func (w Where) Uniform() (Connector, error) {
	connector := And
	seen := false
	for _, c := range w {
		cc := c.Connector
		if cc == "" {
			cc = And
		}
		if cc != And && cc != Or {
			return "", dErrors.New(dErrors.CodeValidation, "unknown where connector "+string(cc))
		}
		if !seen {
			connector = cc
			seen = true
			continue
		}
		if cc != connector {
			return "", dErrors.New(dErrors.CodeValidation, "mixed AND/OR connectors in one where list")
		}
	}
	return connector, nil
}

// Eq is shorthand for the most common single-field filter.
func Eq(field string, value any) Where {
	return Where{{Field: field, Value: value, Operator: OpEq}}
}

// SortDirection orders FindMany output.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Sort names the field and direction for FindMany.
type Sort struct {
	Field     string
	Direction SortDirection
}

// FindManyOptions bundles the optional knobs of FindMany.
type FindManyOptions struct {
	Where  Where
	Limit  int
	Offset int
	SortBy *Sort
	Select []string
}

// Row is one record in application form: logical field keys mapped to
// application-level values (bool, time.Time, []string, ...).
type Row = map[string]any

// Adapter is the operation surface every storage backend implements.
//
// Misses surface as sentinel.ErrNotFound (wrapped); adapters never mask
// backend failures. Offset without SortBy still yields a stable order
// (identifier ordering is injected).
type Adapter interface {
	Create(ctx context.Context, model string, data Row, selected []string) (Row, error)
	FindOne(ctx context.Context, model string, where Where, selected []string) (Row, error)
	FindMany(ctx context.Context, model string, opts FindManyOptions) ([]Row, error)
	Update(ctx context.Context, model string, where Where, change Row) (Row, error)
	UpdateMany(ctx context.Context, model string, where Where, change Row) ([]Row, error)
	Count(ctx context.Context, model string, where Where) (int64, error)
	Delete(ctx context.Context, model string, where Where) error
	DeleteMany(ctx context.Context, model string, where Where) (int64, error)
}
