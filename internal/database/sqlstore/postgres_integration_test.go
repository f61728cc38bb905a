//go:build integration

package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"koroflow/internal/database"
	"koroflow/internal/database/sqlstore"
	"koroflow/internal/schema"
	"koroflow/pkg/platform/sentinel"
	"koroflow/pkg/testutil/containers"
)

type PostgresAdapterSuite struct {
	suite.Suite
	ctx      context.Context
	pg       *containers.PostgresContainer
	resolver *schema.Resolver
	adapter  *sqlstore.Adapter
	runner   *sqlstore.Runner
}

func TestPostgresAdapterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAdapterSuite))
}

func (s *PostgresAdapterSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())

	var err error
	s.resolver, err = schema.NewResolver(schema.Config{})
	s.Require().NoError(err)

	dialect, err := sqlstore.NewDialect("postgres")
	s.Require().NoError(err)
	s.Require().NoError(sqlstore.Migrate(s.ctx, s.pg.DB, dialect, s.resolver))

	s.adapter = sqlstore.New(s.pg.DB, dialect, s.resolver, database.IDConfig{})
	s.runner = sqlstore.NewRunner(s.pg.DB, s.adapter)
}

func (s *PostgresAdapterSuite) SetupTest() {
	tables := make([]string, 0, len(s.resolver.Entities()))
	for _, entity := range s.resolver.Entities() {
		table, err := s.resolver.Resolve(entity)
		s.Require().NoError(err)
		tables = append(tables, table.Name)
	}
	s.Require().NoError(s.pg.TruncateTables(s.ctx, tables...))
}

func (s *PostgresAdapterSuite) TestCreateKeepsNativeTypes() {
	row, err := s.adapter.Create(s.ctx, schema.EntityDomain, database.Row{
		"name":           "app.example.com",
		"allowedOrigins": []string{"https://app.example.com"},
	}, nil)
	s.Require().NoError(err)

	s.Len(row["id"].(string), 21)
	s.Equal(true, row["isActive"])
	s.Equal(false, row["isVerified"])
	s.IsType(time.Time{}, row["createdAt"])
	s.Equal([]string{"https://app.example.com"}, row["allowedOrigins"])
}

func (s *PostgresAdapterSuite) TestFindUpdateDelete() {
	created, err := s.adapter.Create(s.ctx, schema.EntityPurpose, database.Row{
		"code":        "analytics",
		"name":        "Analytics",
		"description": "usage analytics",
	}, nil)
	s.Require().NoError(err)

	s.Run("boolean filters use native booleans", func() {
		row, err := s.adapter.FindOne(s.ctx, schema.EntityPurpose, database.Where{
			{Field: "isActive", Operator: database.OpEq, Value: true},
		}, nil)
		s.Require().NoError(err)
		s.Equal("analytics", row["code"])
	})

	s.Run("update returns the rewritten row", func() {
		row, err := s.adapter.Update(s.ctx, schema.EntityPurpose, database.Eq("id", created["id"]), database.Row{
			"description": "rewritten",
		})
		s.Require().NoError(err)
		s.Equal("rewritten", row["description"])
	})

	s.Run("miss is the not-found sentinel", func() {
		_, err := s.adapter.FindOne(s.ctx, schema.EntityPurpose, database.Eq("code", "absent"), nil)
		s.Require().True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("delete removes the row", func() {
		s.Require().NoError(s.adapter.Delete(s.ctx, schema.EntityPurpose, database.Eq("id", created["id"])))
		n, err := s.adapter.Count(s.ctx, schema.EntityPurpose, nil)
		s.Require().NoError(err)
		s.Equal(int64(0), n)
	})
}

func (s *PostgresAdapterSuite) TestJSONRoundTrip() {
	prefs := map[string]any{"analytics": true, "marketing": false}
	consent, err := s.adapter.Create(s.ctx, schema.EntityConsent, database.Row{
		"userId":      "u-1",
		"domainId":    "d-1",
		"preferences": prefs,
	}, nil)
	s.Require().NoError(err)

	back, err := s.adapter.FindOne(s.ctx, schema.EntityConsent, database.Eq("id", consent["id"]), nil)
	s.Require().NoError(err)
	s.Equal(prefs, back["preferences"])
}

func (s *PostgresAdapterSuite) TestPagination() {
	for _, code := range []string{"p01", "p02", "p03", "p04", "p05"} {
		_, err := s.adapter.Create(s.ctx, schema.EntityPurpose, database.Row{
			"code": code, "name": "P " + code, "description": "d",
		}, nil)
		s.Require().NoError(err)
	}

	seen := map[string]bool{}
	for offset := 0; offset < 5; offset += 2 {
		page, err := s.adapter.FindMany(s.ctx, schema.EntityPurpose, database.FindManyOptions{
			Limit:  2,
			Offset: offset,
		})
		s.Require().NoError(err)
		for _, row := range page {
			id := row["id"].(string)
			s.False(seen[id], "row %s appeared on two pages", id)
			seen[id] = true
		}
	}
	s.Len(seen, 5)
}

func (s *PostgresAdapterSuite) TestRunnerRollsBack() {
	boom := errors.New("abort")
	err := s.runner.RunInTx(s.ctx, func(ctx context.Context, a database.Adapter) error {
		if _, err := a.Create(ctx, schema.EntityPurpose, database.Row{
			"code": "tx", "name": "Tx", "description": "d",
		}, nil); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	n, err := s.adapter.Count(s.ctx, schema.EntityPurpose, nil)
	s.Require().NoError(err)
	s.Equal(int64(0), n)
}

func (s *PostgresAdapterSuite) TestRunnerCommits() {
	err := s.runner.RunInTx(s.ctx, func(ctx context.Context, a database.Adapter) error {
		_, err := a.Create(ctx, schema.EntityPurpose, database.Row{
			"code": "tx", "name": "Tx", "description": "d",
		}, nil)
		return err
	})
	s.Require().NoError(err)

	n, err := s.adapter.Count(s.ctx, schema.EntityPurpose, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}
