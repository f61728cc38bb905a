package schema

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ResolverSuite struct {
	suite.Suite
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

// TestCoreResolution verifies every declared entity assembles into a table.
func (s *ResolverSuite) TestCoreResolution() {
	r, err := NewResolver(Config{})
	s.Require().NoError(err)

	s.Run("every entity resolves", func() {
		for _, entity := range r.Entities() {
			table, err := r.Resolve(entity)
			s.Require().NoError(err)
			s.Equal(entity, table.Name)
			s.NotEmpty(table.Order)
			s.Len(table.Fields, len(table.Order))
		}
	})

	s.Run("consent carries its core fields", func() {
		table, err := r.Resolve(EntityConsent)
		s.Require().NoError(err)
		for _, key := range []string{"userId", "domainId", "status", "preferences", "isActive", "givenAt"} {
			s.Contains(table.Fields, key)
		}
	})

	s.Run("id always maps to the id column", func() {
		table, err := r.Resolve(EntityUser)
		s.Require().NoError(err)
		col, ok := table.Column("id")
		s.True(ok)
		s.Equal("id", col)
	})

	s.Run("unknown entity is an error", func() {
		_, err := r.Resolve("subscription")
		s.Error(err)
	})
}

// TestDeterministicAssembly verifies the same inputs always resolve to the
// same tables, field order included.
func (s *ResolverSuite) TestDeterministicAssembly() {
	plugin := Plugin{
		Name: "geo-tag",
		Fields: map[string][]PluginField{
			EntityConsent: {
				{Key: "regionTag", Field: Field{Type: TypeString, Input: true, Returned: true}},
			},
		},
	}
	cfg := Config{Tables: map[string]TableConfig{
		EntityUser: {EntityName: "subjects", Fields: map[string]string{"externalId": "external_id"}},
	}}

	first, err := NewResolver(cfg, plugin)
	s.Require().NoError(err)
	second, err := NewResolver(cfg, plugin)
	s.Require().NoError(err)

	for _, entity := range first.Entities() {
		a, err := first.Resolve(entity)
		s.Require().NoError(err)
		b, err := second.Resolve(entity)
		s.Require().NoError(err)
		s.Equal(a.Name, b.Name)
		s.Equal(a.Order, b.Order)
		for _, key := range a.Order {
			colA, _ := a.Column(key)
			colB, _ := b.Column(key)
			s.Equal(colA, colB)
		}
	}
}

// TestConfigOverrides verifies renames apply and bad configuration fails at
// construction rather than at query time.
func (s *ResolverSuite) TestConfigOverrides() {
	s.Run("renames a storage column", func() {
		r, err := NewResolver(Config{Tables: map[string]TableConfig{
			EntityUser: {Fields: map[string]string{"externalId": "external_id"}},
		}})
		s.Require().NoError(err)

		table, err := r.Resolve(EntityUser)
		s.Require().NoError(err)
		col, ok := table.Column("externalId")
		s.True(ok)
		s.Equal("external_id", col)
	})

	s.Run("overrides the table name", func() {
		r, err := NewResolver(Config{Tables: map[string]TableConfig{
			EntityUser: {EntityName: "subjects"},
		}})
		s.Require().NoError(err)

		table, err := r.Resolve(EntityUser)
		s.Require().NoError(err)
		s.Equal("subjects", table.Name)
	})

	s.Run("renaming an unknown field fails", func() {
		_, err := NewResolver(Config{Tables: map[string]TableConfig{
			EntityUser: {Fields: map[string]string{"nickname": "nick"}},
		}})
		s.Error(err)
	})

	s.Run("configuring an unknown entity fails", func() {
		_, err := NewResolver(Config{Tables: map[string]TableConfig{"invoice": {}}})
		s.Error(err)
	})
}

// TestPlugins verifies plugin fields append after core fields and shadowing
// is rejected.
func (s *ResolverSuite) TestPlugins() {
	s.Run("plugin fields append after core fields", func() {
		plugin := Plugin{
			Name: "geo-tag",
			Fields: map[string][]PluginField{
				EntityConsent: {
					{Key: "regionTag", Field: Field{Type: TypeString, Input: true, Returned: true}},
				},
			},
		}
		r, err := NewResolver(Config{}, plugin)
		s.Require().NoError(err)

		table, err := r.Resolve(EntityConsent)
		s.Require().NoError(err)
		s.Contains(table.Fields, "regionTag")
		s.Equal("regionTag", table.Order[len(table.Order)-1])
	})

	s.Run("plugin shadowing a core field fails", func() {
		plugin := Plugin{
			Name: "bad",
			Fields: map[string][]PluginField{
				EntityConsent: {
					{Key: "status", Field: Field{Type: TypeString}},
				},
			},
		}
		_, err := NewResolver(Config{}, plugin)
		s.Error(err)
	})

	s.Run("two plugins contributing the same field fail", func() {
		field := PluginField{Key: "regionTag", Field: Field{Type: TypeString}}
		a := Plugin{Name: "a", Fields: map[string][]PluginField{EntityConsent: {field}}}
		b := Plugin{Name: "b", Fields: map[string][]PluginField{EntityConsent: {field}}}
		_, err := NewResolver(Config{}, a, b)
		s.Error(err)
	})
}
