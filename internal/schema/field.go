// Package schema declares the field registry for every persisted entity and
// assembles core definitions, configuration overrides, and plugin
// contributions into resolved table schemas. Resolution is deterministic and
// free of I/O; every adapter operation resolves its table on the way in.
package schema

// FieldType is the storage-level type of a field.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeBoolean     FieldType = "boolean"
	TypeDate        FieldType = "date"
	TypeStringArray FieldType = "string[]"
	// TypeJSON covers structured blobs (preference maps, audit change sets).
	// Stored as JSON text on every dialect.
	TypeJSON FieldType = "json"
)

// Field describes one column of an entity.
type Field struct {
	Type     FieldType
	Required bool

	// FieldName is the storage column name. Empty means the logical key is
	// used verbatim.
	FieldName string

	// DefaultValue supplies a value when the create payload omits the field.
	// Only consulted on create.
	DefaultValue func() any

	// Input=false excludes the field from create/update payloads (e.g. id,
	// createdAt are system-managed). Returned=false strips the field from
	// read output (e.g. nothing here yet, but plugins use it for secrets).
	Input    bool
	Returned bool

	// Unique marks natural keys usable for select-after-insert fallback.
	Unique bool

	// References names the entity a foreign key points at, informational for
	// plugins and schema tooling.
	References string
}

// column returns the storage column for the logical key.
func (f Field) column(key string) string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return key
}

// Table is a resolved entity schema: logical field keys mapped to field
// specs plus the storage table name.
type Table struct {
	Name   string
	Fields map[string]Field
	// Order preserves declaration order so generated SQL is stable.
	Order []string
}

// Column resolves a logical field key to its storage column name. The
// identifier key always maps to "id".
func (t Table) Column(key string) (string, bool) {
	if key == "id" {
		return "id", true
	}
	f, ok := t.Fields[key]
	if !ok {
		return "", false
	}
	return f.column(key), true
}
