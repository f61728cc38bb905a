package database

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "koroflow/pkg/domain-errors"
)

type DatabaseSuite struct {
	suite.Suite
}

func TestDatabaseSuite(t *testing.T) {
	suite.Run(t, new(DatabaseSuite))
}

func (s *DatabaseSuite) TestWhereUniform() {
	s.Run("empty list defaults to AND", func() {
		connector, err := Where{}.Uniform()
		s.Require().NoError(err)
		s.Equal(And, connector)
	})

	s.Run("blank connectors mean AND", func() {
		w := Where{
			{Field: "a", Operator: OpEq, Value: 1},
			{Field: "b", Operator: OpEq, Value: 2},
		}
		connector, err := w.Uniform()
		s.Require().NoError(err)
		s.Equal(And, connector)
	})

	s.Run("uniform OR is accepted", func() {
		w := Where{
			{Field: "a", Operator: OpEq, Value: 1, Connector: Or},
			{Field: "b", Operator: OpEq, Value: 2, Connector: Or},
		}
		connector, err := w.Uniform()
		s.Require().NoError(err)
		s.Equal(Or, connector)
	})

	s.Run("mixed connectors are a validation error", func() {
		w := Where{
			{Field: "a", Operator: OpEq, Value: 1, Connector: And},
			{Field: "b", Operator: OpEq, Value: 2, Connector: Or},
		}
		_, err := w.Uniform()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown connector is a validation error", func() {
		w := Where{{Field: "a", Operator: OpEq, Value: 1, Connector: "XOR"}}
		_, err := w.Uniform()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DatabaseSuite) TestGenerateID() {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		s.Len(id, 21)
		for _, r := range id {
			s.True(strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
		s.False(seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func (s *DatabaseSuite) TestIDConfig() {
	s.Run("default mints application ids", func() {
		id, ok, err := IDConfig{}.NewID("user")
		s.Require().NoError(err)
		s.True(ok)
		s.Len(id, 21)
	})

	s.Run("database source omits the id", func() {
		id, ok, err := IDConfig{Source: IDSourceDatabase}.NewID("user")
		s.Require().NoError(err)
		s.False(ok)
		s.Empty(id)
	})

	s.Run("custom source delegates", func() {
		cfg := IDConfig{Source: IDSourceCustom, Generate: func(model string) string { return model + "-1" }}
		id, ok, err := cfg.NewID("user")
		s.Require().NoError(err)
		s.True(ok)
		s.Equal("user-1", id)
	})

	s.Run("custom source without generator errors", func() {
		_, _, err := IDConfig{Source: IDSourceCustom}.NewID("user")
		s.Error(err)
	})

	s.Run("uuid generator yields valid uuids", func() {
		id := UUIDGenerator("user")
		_, err := uuid.Parse(id)
		s.NoError(err)
	})
}
