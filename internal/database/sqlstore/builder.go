package sqlstore

import (
	"fmt"
	"strings"

	"koroflow/internal/database"
	"koroflow/internal/schema"
	"koroflow/internal/transform"
	dErrors "koroflow/pkg/domain-errors"
)

// fragment is a rendered SQL piece plus its bind arguments.
type fragment struct {
	sql  string
	args []any
}

// predicate translates an abstract where list into a dialect predicate.
// Condition values are converted to storage form so that, for example, a
// boolean filter compares against 0/1 on integer-boolean engines.
//
// argOffset is the number of bind parameters already consumed by the
// statement (placeholders are positional on some dialects).
func predicate(d Dialect, table schema.Table, where database.Where, argOffset int) (fragment, error) {
	if len(where) == 0 {
		return fragment{}, nil
	}
	connector, err := where.Uniform()
	if err != nil {
		return fragment{}, err
	}

	terms := make([]string, 0, len(where))
	args := make([]any, 0, len(where))
	n := argOffset

	for _, cond := range where {
		column, field, err := resolveField(table, cond.Field)
		if err != nil {
			return fragment{}, err
		}
		quoted := d.Quote(column)

		switch cond.Operator {
		case database.OpEq, "":
			if cond.Value == nil {
				terms = append(terms, quoted+" IS NULL")
				continue
			}
			v, err := conditionValue(d, field, cond.Value)
			if err != nil {
				return fragment{}, err
			}
			n++
			terms = append(terms, fmt.Sprintf("%s = %s", quoted, d.Placeholder(n)))
			args = append(args, v)

		case database.OpNe:
			if cond.Value == nil {
				terms = append(terms, quoted+" IS NOT NULL")
				continue
			}
			v, err := conditionValue(d, field, cond.Value)
			if err != nil {
				return fragment{}, err
			}
			n++
			terms = append(terms, fmt.Sprintf("%s <> %s", quoted, d.Placeholder(n)))
			args = append(args, v)

		case database.OpLt, database.OpLte, database.OpGt, database.OpGte:
			v, err := conditionValue(d, field, cond.Value)
			if err != nil {
				return fragment{}, err
			}
			n++
			terms = append(terms, fmt.Sprintf("%s %s %s", quoted, comparison(cond.Operator), d.Placeholder(n)))
			args = append(args, v)

		case database.OpIn:
			values, err := inValues(d, field, cond.Value)
			if err != nil {
				return fragment{}, err
			}
			if len(values) == 0 {
				// IN over an empty set matches nothing; render a predicate
				// that says so instead of invalid SQL.
				terms = append(terms, "1 = 0")
				continue
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				n++
				placeholders[i] = d.Placeholder(n)
				args = append(args, v)
			}
			terms = append(terms, fmt.Sprintf("%s IN (%s)", quoted, strings.Join(placeholders, ", ")))

		case database.OpContains, database.OpStartsWith, database.OpEndsWith:
			s, ok := cond.Value.(string)
			if !ok {
				return fragment{}, dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("operator %s requires a string value on field %q", cond.Operator, cond.Field))
			}
			n++
			terms = append(terms, fmt.Sprintf("%s LIKE %s ESCAPE '\\'", quoted, d.Placeholder(n)))
			args = append(args, likePattern(cond.Operator, s))

		default:
			return fragment{}, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("unsupported operator %q", cond.Operator))
		}
	}

	joiner := " AND "
	if connector == database.Or {
		joiner = " OR "
	}
	return fragment{sql: strings.Join(terms, joiner), args: args}, nil
}

func comparison(op database.Operator) string {
	switch op {
	case database.OpLt:
		return "<"
	case database.OpLte:
		return "<="
	case database.OpGt:
		return ">"
	default:
		return ">="
	}
}

// resolveField maps a logical field key onto its storage column and spec.
func resolveField(table schema.Table, key string) (string, schema.Field, error) {
	if key == "id" {
		return "id", schema.Field{Type: schema.TypeString}, nil
	}
	field, ok := table.Fields[key]
	if !ok {
		return "", schema.Field{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("unknown field %q on table %q", key, table.Name))
	}
	column, _ := table.Column(key)
	return column, field, nil
}

func conditionValue(d Dialect, field schema.Field, v any) (any, error) {
	return transform.ToStorage(d.Caps(), field, v)
}

func inValues(d Dialect, field schema.Field, v any) ([]any, error) {
	switch list := v.(type) {
	case []string:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(list))
		for _, item := range list {
			converted, err := conditionValue(d, field, item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("operator in requires a slice, got %T", v))
	}
}

// likePattern escapes LIKE metacharacters in the needle and wraps it for the
// requested match shape.
func likePattern(op database.Operator, s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	switch op {
	case database.OpStartsWith:
		return escaped + "%"
	case database.OpEndsWith:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}

// returnedColumns lists the storage columns the adapter reads back: id plus
// every schema field (visibility trimming happens in the transform layer).
func returnedColumns(d Dialect, table schema.Table) string {
	cols := make([]string, 0, len(table.Order)+1)
	cols = append(cols, d.Quote("id"))
	for _, key := range table.Order {
		column, _ := table.Column(key)
		cols = append(cols, d.Quote(column))
	}
	return strings.Join(cols, ", ")
}

// outputColumns renders the OUTPUT INSERTED list for SQL Server.
func outputColumns(d Dialect, table schema.Table) string {
	cols := make([]string, 0, len(table.Order)+1)
	cols = append(cols, "INSERTED."+d.Quote("id"))
	for _, key := range table.Order {
		column, _ := table.Column(key)
		cols = append(cols, "INSERTED."+d.Quote(column))
	}
	return strings.Join(cols, ", ")
}
