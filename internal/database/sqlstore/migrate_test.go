package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"koroflow/internal/schema"
)

type MigrateSuite struct {
	suite.Suite
	table schema.Table
}

func TestMigrateSuite(t *testing.T) {
	suite.Run(t, new(MigrateSuite))
}

func (s *MigrateSuite) SetupSuite() {
	resolver, err := schema.NewResolver(schema.Config{})
	s.Require().NoError(err)
	s.table, err = resolver.Resolve(schema.EntityPurpose)
	s.Require().NoError(err)
}

func (s *MigrateSuite) TestCreateTableShapes() {
	s.Run("sqlite", func() {
		stmt := createTableSQL(SQLite{}, s.table)
		s.Contains(stmt, `CREATE TABLE IF NOT EXISTS "consentPurpose"`)
		s.Contains(stmt, `"id" TEXT PRIMARY KEY`)
		s.Contains(stmt, `"code" TEXT NOT NULL UNIQUE`)
		s.Contains(stmt, `"isEssential" INTEGER NOT NULL`)
		s.Contains(stmt, `"createdAt" TEXT NOT NULL`)
	})

	s.Run("postgres keeps native types", func() {
		stmt := createTableSQL(Postgres{}, s.table)
		s.Contains(stmt, `"isEssential" BOOLEAN NOT NULL`)
		s.Contains(stmt, `"createdAt" TIMESTAMPTZ NOT NULL`)
	})

	s.Run("mysql uses indexable key columns", func() {
		stmt := createTableSQL(MySQL{}, s.table)
		s.Contains(stmt, "`id` VARCHAR(255) PRIMARY KEY")
		s.Contains(stmt, "`code` VARCHAR(255) NOT NULL UNIQUE")
		s.Contains(stmt, "`createdAt` DATETIME(6) NOT NULL")
	})

	s.Run("sqlserver wraps in an existence check", func() {
		stmt := createTableSQL(SQLServer{}, s.table)
		s.Contains(stmt, "IF OBJECT_ID(N'consentPurpose', N'U') IS NULL BEGIN CREATE TABLE")
		s.Contains(stmt, "[isEssential] BIT NOT NULL")
		s.Contains(stmt, "[createdAt] DATETIME2 NOT NULL")
		s.Contains(stmt, "END")
	})
}
