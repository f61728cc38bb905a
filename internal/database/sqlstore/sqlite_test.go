package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"koroflow/internal/database"
	"koroflow/internal/schema"
	"koroflow/pkg/platform/sentinel"
)

// noReturningDialect drives the insert-then-select and update-by-ids
// fallback paths against a real engine.
type noReturningDialect struct {
	SQLite
}

func (noReturningDialect) Returning() ReturningStyle { return ReturningNone }

type SQLiteAdapterSuite struct {
	suite.Suite
	ctx      context.Context
	db       *sql.DB
	resolver *schema.Resolver
	adapter  *Adapter
}

func TestSQLiteAdapterSuite(t *testing.T) {
	suite.Run(t, new(SQLiteAdapterSuite))
}

func (s *SQLiteAdapterSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	s.Require().NoError(err)
	// A memory database lives in its single connection.
	db.SetMaxOpenConns(1)
	s.db = db

	s.resolver, err = schema.NewResolver(schema.Config{})
	s.Require().NoError(err)

	s.Require().NoError(Migrate(s.ctx, db, SQLite{}, s.resolver))
	s.adapter = New(db, SQLite{}, s.resolver, database.IDConfig{})
}

func (s *SQLiteAdapterSuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *SQLiteAdapterSuite) createPurpose(code string) database.Row {
	row, err := s.adapter.Create(s.ctx, schema.EntityPurpose, database.Row{
		"code":        code,
		"name":        "Purpose " + code,
		"description": "test purpose",
	}, nil)
	s.Require().NoError(err)
	return row
}

func (s *SQLiteAdapterSuite) TestCreateReadsBackApplicationForm() {
	row := s.createPurpose("analytics")

	id, ok := row["id"].(string)
	s.Require().True(ok)
	s.Len(id, 21)
	s.Equal(true, row["isActive"])
	s.Equal(false, row["isEssential"])
	s.IsType(time.Time{}, row["createdAt"])

	s.Run("booleans live as integers in storage", func() {
		var stored int
		err := s.db.QueryRowContext(s.ctx, `SELECT "isActive" FROM "consentPurpose" WHERE "id" = ?`, id).Scan(&stored)
		s.Require().NoError(err)
		s.Equal(1, stored)
	})

	s.Run("dates live as text in storage", func() {
		var stored string
		err := s.db.QueryRowContext(s.ctx, `SELECT "createdAt" FROM "consentPurpose" WHERE "id" = ?`, id).Scan(&stored)
		s.Require().NoError(err)
		_, err = time.Parse(time.RFC3339Nano, stored)
		s.NoError(err)
	})
}

func (s *SQLiteAdapterSuite) TestJSONAndArrayRoundTrip() {
	domain, err := s.adapter.Create(s.ctx, schema.EntityDomain, database.Row{
		"name":           "app.example.com",
		"allowedOrigins": []string{"https://app.example.com"},
	}, nil)
	s.Require().NoError(err)

	prefs := map[string]any{"analytics": true, "marketing": false}
	consent, err := s.adapter.Create(s.ctx, schema.EntityConsent, database.Row{
		"userId":      "u-1",
		"domainId":    domain["id"],
		"preferences": prefs,
	}, nil)
	s.Require().NoError(err)

	back, err := s.adapter.FindOne(s.ctx, schema.EntityConsent, database.Eq("id", consent["id"]), nil)
	s.Require().NoError(err)
	s.Equal(prefs, back["preferences"])
	s.Equal(true, back["isActive"])
	s.IsType(time.Time{}, back["givenAt"])

	backDomain, err := s.adapter.FindOne(s.ctx, schema.EntityDomain, database.Eq("name", "app.example.com"), nil)
	s.Require().NoError(err)
	s.Equal([]string{"https://app.example.com"}, backDomain["allowedOrigins"])
}

func (s *SQLiteAdapterSuite) TestFindOne() {
	s.createPurpose("analytics")

	s.Run("boolean filters translate", func() {
		row, err := s.adapter.FindOne(s.ctx, schema.EntityPurpose, database.Where{
			{Field: "isActive", Operator: database.OpEq, Value: true},
		}, nil)
		s.Require().NoError(err)
		s.Equal("analytics", row["code"])
	})

	s.Run("miss is the not-found sentinel", func() {
		_, err := s.adapter.FindOne(s.ctx, schema.EntityPurpose, database.Eq("code", "absent"), nil)
		s.Require().True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *SQLiteAdapterSuite) TestUpdate() {
	created := s.createPurpose("analytics")

	row, err := s.adapter.Update(s.ctx, schema.EntityPurpose, database.Eq("id", created["id"]), database.Row{
		"description": "rewritten",
		"isActive":    false,
	})
	s.Require().NoError(err)
	s.Equal("rewritten", row["description"])
	s.Equal(false, row["isActive"])

	s.Run("update miss is the not-found sentinel", func() {
		_, err := s.adapter.Update(s.ctx, schema.EntityPurpose, database.Eq("code", "absent"), database.Row{"description": "x"})
		s.Require().True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *SQLiteAdapterSuite) TestUpdateManyAndCount() {
	s.createPurpose("p1")
	s.createPurpose("p2")
	s.createPurpose("other")

	rows, err := s.adapter.UpdateMany(s.ctx, schema.EntityPurpose, database.Where{
		{Field: "code", Operator: database.OpStartsWith, Value: "p"},
	}, database.Row{"isActive": false})
	s.Require().NoError(err)
	s.Len(rows, 2)

	n, err := s.adapter.Count(s.ctx, schema.EntityPurpose, database.Eq("isActive", false))
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *SQLiteAdapterSuite) TestDelete() {
	s.createPurpose("p1")
	s.createPurpose("p2")

	s.Require().NoError(s.adapter.Delete(s.ctx, schema.EntityPurpose, database.Eq("code", "p1")))

	removed, err := s.adapter.DeleteMany(s.ctx, schema.EntityPurpose, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)
}

// TestPaginationStability verifies offset paging without a sort walks every
// row exactly once in identifier order.
func (s *SQLiteAdapterSuite) TestPaginationStability() {
	var all []string
	for i := 0; i < 10; i++ {
		row := s.createPurpose(fmt.Sprintf("p%02d", i))
		all = append(all, row["id"].(string))
	}
	sort.Strings(all)

	var walked []string
	for offset := 0; offset < 10; offset += 4 {
		page, err := s.adapter.FindMany(s.ctx, schema.EntityPurpose, database.FindManyOptions{
			Limit:  4,
			Offset: offset,
		})
		s.Require().NoError(err)
		for _, row := range page {
			walked = append(walked, row["id"].(string))
		}
	}
	s.Equal(all, walked)
}

func (s *SQLiteAdapterSuite) TestExplicitSort() {
	s.createPurpose("charlie")
	s.createPurpose("alpha")

	rows, err := s.adapter.FindMany(s.ctx, schema.EntityPurpose, database.FindManyOptions{
		SortBy: &database.Sort{Field: "code", Direction: database.Desc},
	})
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("charlie", rows[0]["code"])
}

// TestNoReturningFallbacks runs the same engine through the dialect paths
// used when RETURNING is unavailable.
func (s *SQLiteAdapterSuite) TestNoReturningFallbacks() {
	adapter := New(s.db, noReturningDialect{}, s.resolver, database.IDConfig{})

	s.Run("create selects back by application id", func() {
		row, err := adapter.Create(s.ctx, schema.EntityPurpose, database.Row{
			"code":        "fallback",
			"name":        "Fallback",
			"description": "d",
		}, nil)
		s.Require().NoError(err)
		s.NotEmpty(row["id"])
		s.Equal("fallback", row["code"])
		s.Equal(true, row["isActive"])
	})

	s.Run("create selects back by natural key when the engine mints ids", func() {
		dbMinted := New(s.db, noReturningDialect{}, s.resolver, database.IDConfig{Source: database.IDSourceDatabase})
		geo, err := dbMinted.Create(s.ctx, schema.EntityGeoLocation, database.Row{
			"countryCode": "DE",
			"countryName": "Germany",
		}, nil)
		s.Require().NoError(err)
		s.Equal("DE", geo["countryCode"])
	})

	s.Run("update selects ids first and reads the result back", func() {
		row, err := adapter.Update(s.ctx, schema.EntityPurpose, database.Eq("code", "fallback"), database.Row{
			"description": "rewritten",
		})
		s.Require().NoError(err)
		s.Equal("rewritten", row["description"])
	})

	s.Run("update many rewrites each matched row", func() {
		_, err := adapter.Create(s.ctx, schema.EntityPurpose, database.Row{
			"code": "fallback2", "name": "F2", "description": "d",
		}, nil)
		s.Require().NoError(err)

		rows, err := adapter.UpdateMany(s.ctx, schema.EntityPurpose, database.Where{
			{Field: "code", Operator: database.OpStartsWith, Value: "fallback"},
		}, database.Row{"isActive": false})
		s.Require().NoError(err)
		s.Len(rows, 2)
	})
}

type SQLiteRunnerSuite struct {
	suite.Suite
	ctx     context.Context
	db      *sql.DB
	adapter *Adapter
	runner  *Runner
}

func TestSQLiteRunnerSuite(t *testing.T) {
	suite.Run(t, new(SQLiteRunnerSuite))
}

func (s *SQLiteRunnerSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.db = db

	resolver, err := schema.NewResolver(schema.Config{})
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, db, SQLite{}, resolver))

	s.adapter = New(db, SQLite{}, resolver, database.IDConfig{})
	s.runner = NewRunner(db, s.adapter)
}

func (s *SQLiteRunnerSuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *SQLiteRunnerSuite) TestCommit() {
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

func (s *SQLiteRunnerSuite) TestRollback() {
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
