package bakery

import (
	"database/sql"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/database/memory"
	"github.com/denismitr/bakery/internal/database/sqlgateway"
	"github.com/denismitr/bakery/internal/database/sqlgateway/sqlite"
	"github.com/jmoiron/sqlx"
)

type SqliteOptionFunc func(*sqlite.Options, *sqlgateway.ConnectOptions)

func UseSqlite(db *sql.DB, options ...SqliteOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		sqliteOpts := &sqlite.Options{
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(sqliteOpts, connectOpts)
		}

		connector := sqlgateway.MakeRetryingConnector(sqlx.NewDb(db, "sqlite3"), connectOpts)
		m.gateway = sqlgateway.NewSqliteGateway(connector, sqliteOpts)

		return nil
	}
}

// UseInMemoryDatabase keeps the log in process memory and only records
// the statements migrations execute
func UseInMemoryDatabase(transactional bool) OptionFunc {
	return func(m *Migrator) error {
		m.gateway = memory.New(transactional)
		return nil
	}
}

func WithSqliteMaxConnectionAttempts(attempts int) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}

func WithSqliteConnectionTimeout(timeout time.Duration) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithSqliteMigrationTable(migrationTable string) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		sqliteOpts.MigrationsTable = migrationTable
	}
}
