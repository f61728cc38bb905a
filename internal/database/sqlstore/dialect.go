// Package sqlstore implements the adapter contract against database/sql,
// translating abstract filter conditions into dialect SQL. Dialect quirks
// (RETURNING support, pagination idioms, boolean representation) live in a
// closed set of strategies selected once at construction; nothing branches
// on the dialect per call.
package sqlstore

import (
	"fmt"
	"strings"

	"koroflow/internal/transform"
)

// ReturningStyle describes how a dialect hands back written rows.
type ReturningStyle int

const (
	// ReturningNone means insert-then-select by natural key.
	ReturningNone ReturningStyle = iota
	// ReturningClause appends RETURNING <cols>.
	ReturningClause
	// OutputClause injects OUTPUT INSERTED.<cols> before VALUES/WHERE
	// (SQL Server).
	OutputClause
)

// Dialect is one engine's SQL variant and capability set.
type Dialect interface {
	Name() string
	Caps() transform.Caps
	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder(i int) string
	Quote(ident string) string
	Returning() ReturningStyle
	// Top renders a projection prefix for limit-without-offset engines that
	// have no LIMIT keyword; empty for everyone else.
	Top(limit, offset int) string
	// LimitOffset renders the trailing pagination clause.
	LimitOffset(limit, offset int) string
	// RequiresOrderForOffset reports whether OFFSET is only legal after an
	// ORDER BY, forcing the adapter to inject identifier ordering.
	RequiresOrderForOffset() bool
}

// NewDialect maps a driver name to its strategy.
func NewDialect(name string) (Dialect, error) {
	switch name {
	case "sqlite":
		return SQLite{}, nil
	case "mysql":
		return MySQL{}, nil
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlserver", "mssql":
		return SQLServer{}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", name)
	}
}

// SQLite: no native booleans or temporal types, but RETURNING is available.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) Caps() transform.Caps {
	return transform.Caps{BooleanAsInteger: true, DateAsString: true}
}
func (SQLite) Placeholder(int) string      { return "?" }
func (SQLite) Quote(ident string) string   { return `"` + ident + `"` }
func (SQLite) Returning() ReturningStyle   { return ReturningClause }
func (SQLite) Top(int, int) string         { return "" }
func (SQLite) RequiresOrderForOffset() bool { return false }
func (SQLite) LimitOffset(limit, offset int) string {
	return limitOffset(limit, offset)
}

// MySQL: booleans are tinyints and there is no RETURNING; writes are
// confirmed by a follow-up select on the natural key.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }
func (MySQL) Caps() transform.Caps {
	return transform.Caps{BooleanAsInteger: true}
}
func (MySQL) Placeholder(int) string      { return "?" }
func (MySQL) Quote(ident string) string   { return "`" + ident + "`" }
func (MySQL) Returning() ReturningStyle   { return ReturningNone }
func (MySQL) Top(int, int) string         { return "" }
func (MySQL) RequiresOrderForOffset() bool { return false }
func (MySQL) LimitOffset(limit, offset int) string {
	return limitOffset(limit, offset)
}

// Postgres: native booleans and timestamps, RETURNING, $n placeholders.
type Postgres struct{}

func (Postgres) Name() string               { return "postgres" }
func (Postgres) Caps() transform.Caps       { return transform.Caps{} }
func (Postgres) Placeholder(i int) string   { return fmt.Sprintf("$%d", i) }
func (Postgres) Quote(ident string) string  { return `"` + ident + `"` }
func (Postgres) Returning() ReturningStyle  { return ReturningClause }
func (Postgres) Top(int, int) string        { return "" }
func (Postgres) RequiresOrderForOffset() bool { return false }
func (Postgres) LimitOffset(limit, offset int) string {
	return limitOffset(limit, offset)
}

// SQLServer: OUTPUT instead of RETURNING, TOP instead of LIMIT, and
// OFFSET/FETCH only after an ORDER BY. Booleans are BIT columns stored 0/1.
type SQLServer struct{}

func (SQLServer) Name() string { return "sqlserver" }
func (SQLServer) Caps() transform.Caps {
	return transform.Caps{BooleanAsInteger: true}
}
func (SQLServer) Placeholder(i int) string  { return fmt.Sprintf("@p%d", i) }
func (SQLServer) Quote(ident string) string { return "[" + ident + "]" }
func (SQLServer) Returning() ReturningStyle { return OutputClause }
func (SQLServer) RequiresOrderForOffset() bool { return true }

func (SQLServer) Top(limit, offset int) string {
	if limit > 0 && offset == 0 {
		return fmt.Sprintf("TOP (%d) ", limit)
	}
	return ""
}

func (SQLServer) LimitOffset(limit, offset int) string {
	if offset <= 0 {
		// limit-only is rendered via TOP.
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, " OFFSET %d ROWS", offset)
	if limit > 0 {
		fmt.Fprintf(&sb, " FETCH NEXT %d ROWS ONLY", limit)
	}
	return sb.String()
}

func limitOffset(limit, offset int) string {
	var sb strings.Builder
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String()
}
