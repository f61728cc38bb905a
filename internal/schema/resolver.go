package schema

import (
	"fmt"
	"sort"
)

// TableConfig customizes the persisted layout of one entity.
type TableConfig struct {
	// EntityName overrides the storage table name.
	EntityName string
	// Fields renames storage columns, keyed by logical field key. Renaming an
	// unknown key is a configuration error surfaced at construction.
	Fields map[string]string
}

// Config is the user-supplied layout configuration.
type Config struct {
	Tables map[string]TableConfig
}

// PluginField is one field contributed by a plugin.
type PluginField struct {
	Key   string
	Field Field
}

// Plugin contributes additional fields to core entities. Plugins can add
// fields; they cannot remove or rename core fields.
type Plugin struct {
	Name string
	// Fields maps entity name to contributed fields, applied in slice order.
	Fields map[string][]PluginField
}

// Resolver assembles core field sets, configuration overrides, and plugin
// contributions into resolved tables. Assembly happens once at construction;
// Resolve is a map lookup, cheap enough to call per operation.
type Resolver struct {
	tables map[string]Table
}

// NewResolver merges, in order: core fields, configuration renames, plugin
// additions. Later layers add but never remove. Conflicts (renaming an
// unknown field, a plugin shadowing a core or earlier-plugin field) fail
// deterministically here rather than silently overriding at query time.
func NewResolver(cfg Config, plugins ...Plugin) (*Resolver, error) {
	tables := make(map[string]Table, len(entityOrder))

	for _, entity := range entityOrder {
		tableName := entity
		var tc TableConfig
		if cfg.Tables != nil {
			tc = cfg.Tables[entity]
		}
		if tc.EntityName != "" {
			tableName = tc.EntityName
		}

		fields := coreFields(entity)
		order := make([]string, 0, len(fields))
		merged := make(map[string]Field, len(fields))
		for _, nf := range fields {
			order = append(order, nf.key)
			merged[nf.key] = nf.field
		}

		for key, column := range tc.Fields {
			spec, ok := merged[key]
			if !ok {
				return nil, fmt.Errorf("schema: entity %q has no field %q to rename", entity, key)
			}
			spec.FieldName = column
			merged[key] = spec
		}

		for _, plugin := range plugins {
			for _, pf := range plugin.Fields[entity] {
				if _, exists := merged[pf.Key]; exists {
					return nil, fmt.Errorf("schema: plugin %q redeclares field %q on entity %q", plugin.Name, pf.Key, entity)
				}
				order = append(order, pf.Key)
				merged[pf.Key] = pf.Field
			}
		}

		tables[entity] = Table{Name: tableName, Fields: merged, Order: order}
	}

	if err := validateConfig(cfg, tables); err != nil {
		return nil, err
	}
	return &Resolver{tables: tables}, nil
}

// validateConfig rejects table configuration for entities that do not exist.
func validateConfig(cfg Config, tables map[string]Table) error {
	unknown := make([]string, 0)
	for entity := range cfg.Tables {
		if _, ok := tables[entity]; !ok {
			unknown = append(unknown, entity)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("schema: configuration references unknown entities %v", unknown)
}

// Resolve returns the assembled table for an entity. The returned Table is
// shared and must be treated as read-only.
func (r *Resolver) Resolve(entity string) (Table, error) {
	t, ok := r.tables[entity]
	if !ok {
		return Table{}, fmt.Errorf("schema: unknown entity %q", entity)
	}
	return t, nil
}

// Entities lists all registered entity names in declaration order.
func (r *Resolver) Entities() []string {
	out := make([]string, len(entityOrder))
	copy(out, entityOrder)
	return out
}
