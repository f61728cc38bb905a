package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"koroflow/internal/schema"
)

// Migrate creates the backing table of every resolved entity when it does
// not exist yet. Column types follow the dialect capability set so the
// storage forms produced by the transform layer always fit.
func Migrate(ctx context.Context, db *sql.DB, d Dialect, resolver *schema.Resolver) error {
	for _, entity := range resolver.Entities() {
		table, err := resolver.Resolve(entity)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, createTableSQL(d, table)); err != nil {
			return fmt.Errorf("create table %s: %w", table.Name, err)
		}
	}
	return nil
}

func createTableSQL(d Dialect, table schema.Table) string {
	cols := []string{d.Quote("id") + " " + keyType(d) + " PRIMARY KEY"}
	for _, key := range table.Order {
		col, ok := table.Column(key)
		if !ok || col == "id" {
			continue
		}
		field := table.Fields[key]
		def := d.Quote(col) + " " + columnType(d, field)
		if field.Required {
			def += " NOT NULL"
		}
		if field.Unique {
			def += " UNIQUE"
		}
		cols = append(cols, def)
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(table.Name), strings.Join(cols, ", "))
	if d.Name() == "sqlserver" {
		// SQL Server has no IF NOT EXISTS for tables.
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN %s END", table.Name, stmt)
	}
	return strings.Replace(stmt, "CREATE TABLE", "CREATE TABLE IF NOT EXISTS", 1)
}

func columnType(d Dialect, field schema.Field) string {
	caps := d.Caps()
	switch field.Type {
	case schema.TypeBoolean:
		if !caps.BooleanAsInteger {
			return "BOOLEAN"
		}
		if d.Name() == "sqlserver" {
			return "BIT"
		}
		return "INTEGER"
	case schema.TypeDate:
		if caps.DateAsString {
			return textType(d)
		}
		switch d.Name() {
		case "postgres":
			return "TIMESTAMPTZ"
		case "sqlserver":
			return "DATETIME2"
		default:
			return "DATETIME(6)"
		}
	case schema.TypeNumber:
		switch d.Name() {
		case "postgres":
			return "DOUBLE PRECISION"
		case "mysql":
			return "DOUBLE"
		case "sqlserver":
			return "FLOAT"
		default:
			return "REAL"
		}
	default:
		if field.Unique {
			// Unique needs an indexable type everywhere.
			return keyType(d)
		}
		return textType(d)
	}
}

func textType(d Dialect) string {
	if d.Name() == "sqlserver" {
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}

// keyType is the type of identifier and unique string columns; MySQL
// cannot index unbounded TEXT.
func keyType(d Dialect) string {
	switch d.Name() {
	case "mysql":
		return "VARCHAR(255)"
	case "sqlserver":
		return "NVARCHAR(255)"
	default:
		return "TEXT"
	}
}
