package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"koroflow/internal/database"
	"koroflow/internal/schema"
)

type TransformSuite struct {
	suite.Suite
}

func TestTransformSuite(t *testing.T) {
	suite.Run(t, new(TransformSuite))
}

func testTable() schema.Table {
	fields := map[string]schema.Field{
		"name":      {Type: schema.TypeString, Required: true, Input: true, Returned: true},
		"active":    {Type: schema.TypeBoolean, Input: true, Returned: true, DefaultValue: func() any { return true }},
		"seenAt":    {Type: schema.TypeDate, Input: true, Returned: true},
		"tags":      {Type: schema.TypeStringArray, Input: true, Returned: true},
		"meta":      {Type: schema.TypeJSON, Input: true, Returned: true},
		"secret":    {Type: schema.TypeString, Input: true, Returned: false},
		"createdAt": {Type: schema.TypeDate, Returned: true, DefaultValue: func() any { return time.Now().UTC() }},
		"updatedAt": {Type: schema.TypeDate, Returned: true, DefaultValue: func() any { return time.Now().UTC() }},
	}
	return schema.Table{
		Name:   "widget",
		Fields: fields,
		Order:  []string{"name", "active", "seenAt", "tags", "meta", "secret", "createdAt", "updatedAt"},
	}
}

// TestRoundTrip verifies ToStorage followed by FromStorage reproduces the
// application value under every capability combination.
func (s *TransformSuite) TestRoundTrip() {
	capsCombos := map[string]Caps{
		"native":          {},
		"integer bools":   {BooleanAsInteger: true},
		"string dates":    {DateAsString: true},
		"sqlite profile":  {BooleanAsInteger: true, DateAsString: true},
	}
	table := testTable()
	when := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	values := map[string]any{
		"name":   "analytics",
		"active": true,
		"seenAt": when,
		"tags":   []string{"a", "b"},
		"meta":   map[string]any{"nested": map[string]any{"ok": true}, "label": "x"},
	}

	for label, caps := range capsCombos {
		s.Run(label, func() {
			for key, value := range values {
				field := table.Fields[key]
				stored, err := ToStorage(caps, field, value)
				s.Require().NoError(err, key)
				back, err := FromStorage(caps, field, stored)
				s.Require().NoError(err, key)
				s.Equal(value, back, key)
			}
		})
	}
}

func (s *TransformSuite) TestStorageForms() {
	table := testTable()

	s.Run("integer booleans", func() {
		caps := Caps{BooleanAsInteger: true}
		v, err := ToStorage(caps, table.Fields["active"], true)
		s.Require().NoError(err)
		s.Equal(int64(1), v)
		v, err = ToStorage(caps, table.Fields["active"], false)
		s.Require().NoError(err)
		s.Equal(int64(0), v)
	})

	s.Run("string dates are RFC3339", func() {
		caps := Caps{DateAsString: true}
		when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		v, err := ToStorage(caps, table.Fields["seenAt"], when)
		s.Require().NoError(err)
		text, ok := v.(string)
		s.Require().True(ok)
		parsed, err := time.Parse(time.RFC3339Nano, text)
		s.Require().NoError(err)
		s.True(when.Equal(parsed))
	})

	s.Run("arrays and json are text on every dialect", func() {
		v, err := ToStorage(Caps{}, table.Fields["tags"], []string{"x"})
		s.Require().NoError(err)
		s.Equal(`["x"]`, v)
		v, err = ToStorage(Caps{}, table.Fields["meta"], map[string]any{"k": "v"})
		s.Require().NoError(err)
		s.Equal(`{"k":"v"}`, v)
	})

	s.Run("nil passes through", func() {
		v, err := ToStorage(Caps{}, table.Fields["seenAt"], nil)
		s.Require().NoError(err)
		s.Nil(v)
	})

	s.Run("type mismatches error", func() {
		_, err := ToStorage(Caps{}, table.Fields["active"], "yes")
		s.Error(err)
		_, err = ToStorage(Caps{}, table.Fields["seenAt"], "2026-01-01")
		s.Error(err)
	})

	s.Run("reads tolerate driver types", func() {
		b, err := FromStorage(Caps{BooleanAsInteger: true}, table.Fields["active"], int64(1))
		s.Require().NoError(err)
		s.Equal(true, b)
		arr, err := FromStorage(Caps{}, table.Fields["tags"], []byte(`["a"]`))
		s.Require().NoError(err)
		s.Equal([]string{"a"}, arr)
	})
}

// TestInputCreate verifies id minting, default application, and projection.
func (s *TransformSuite) TestInputCreate() {
	table := testTable()
	tr := New(Caps{}, database.IDConfig{})

	s.Run("mints an identifier and applies defaults", func() {
		row, err := tr.Input(table, database.Row{"name": "analytics"}, ActionCreate)
		s.Require().NoError(err)

		id, ok := row["id"].(string)
		s.Require().True(ok)
		s.Len(id, 21)
		s.Equal("analytics", row["name"])
		s.Equal(true, row["active"])
		s.NotNil(row["createdAt"])
		s.NotNil(row["updatedAt"])
	})

	s.Run("keeps an explicit identifier", func() {
		row, err := tr.Input(table, database.Row{"id": "fixed-id", "name": "x"}, ActionCreate)
		s.Require().NoError(err)
		s.Equal("fixed-id", row["id"])
	})

	s.Run("payload wins over default", func() {
		row, err := tr.Input(table, database.Row{"name": "x", "active": false}, ActionCreate)
		s.Require().NoError(err)
		s.Equal(false, row["active"])
	})

	s.Run("drops unknown and non-input keys", func() {
		row, err := tr.Input(table, database.Row{
			"name":      "x",
			"bogus":     1,
			"createdAt": time.Unix(0, 0),
		}, ActionCreate)
		s.Require().NoError(err)
		s.NotContains(row, "bogus")
		created, ok := row["createdAt"].(time.Time)
		s.Require().True(ok)
		s.NotEqual(time.Unix(0, 0).UTC(), created)
	})

	s.Run("database-owned ids are omitted", func() {
		dbTr := New(Caps{}, database.IDConfig{Source: database.IDSourceDatabase})
		row, err := dbTr.Input(table, database.Row{"name": "x"}, ActionCreate)
		s.Require().NoError(err)
		s.NotContains(row, "id")
	})

	s.Run("custom generator is used", func() {
		custom := New(Caps{}, database.IDConfig{
			Source:   database.IDSourceCustom,
			Generate: func(model string) string { return "gen-" + model },
		})
		row, err := custom.Input(table, database.Row{"name": "x"}, ActionCreate)
		s.Require().NoError(err)
		s.Equal("gen-widget", row["id"])
	})
}

// TestInputUpdate verifies updates carry only present keys plus the
// automatic updatedAt touch.
func (s *TransformSuite) TestInputUpdate() {
	table := testTable()
	tr := New(Caps{}, database.IDConfig{})

	row, err := tr.Input(table, database.Row{"name": "renamed"}, ActionUpdate)
	s.Require().NoError(err)

	s.Equal("renamed", row["name"])
	s.NotContains(row, "id")
	s.NotContains(row, "active")
	s.NotContains(row, "createdAt")
	s.Contains(row, "updatedAt")
}

// TestOutput verifies returned-field stripping and the select projection.
func (s *TransformSuite) TestOutput() {
	table := testTable()
	tr := New(Caps{BooleanAsInteger: true, DateAsString: true}, database.IDConfig{})
	when := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	stored := database.Row{
		"id":     "row-1",
		"name":   "analytics",
		"active": int64(1),
		"seenAt": when.Format(time.RFC3339Nano),
		"tags":   `["a","b"]`,
		"secret": "hunter2",
	}

	s.Run("converts and strips unreturned fields", func() {
		out, err := tr.Output(table, stored, nil)
		s.Require().NoError(err)
		s.Equal("row-1", out["id"])
		s.Equal(true, out["active"])
		s.Equal(when, out["seenAt"])
		s.Equal([]string{"a", "b"}, out["tags"])
		s.NotContains(out, "secret")
	})

	s.Run("select filters but id stays", func() {
		out, err := tr.Output(table, stored, []string{"name"})
		s.Require().NoError(err)
		s.Equal(database.Row{"id": "row-1", "name": "analytics"}, out)
	})

	s.Run("selecting an unreturned field does not leak it", func() {
		out, err := tr.Output(table, stored, []string{"secret"})
		s.Require().NoError(err)
		s.NotContains(out, "secret")
	})

	s.Run("nil row stays nil", func() {
		out, err := tr.Output(table, nil, nil)
		s.Require().NoError(err)
		s.Nil(out)
	})
}
