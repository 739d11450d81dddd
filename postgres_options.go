package bakery

import (
	"database/sql"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/database/sqlgateway"
	"github.com/denismitr/bakery/internal/database/sqlgateway/postgres"
	"github.com/jmoiron/sqlx"
)

type PostgresOptionFunc func(*postgres.Options, *sqlgateway.ConnectOptions)

func UsePostgres(db *sql.DB, options ...PostgresOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		postgresOpts := &postgres.Options{
			LockKey: postgres.DefaultLockKey,
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(postgresOpts, connectOpts)
		}

		connector := sqlgateway.MakeRetryingConnector(sqlx.NewDb(db, "postgres"), connectOpts)
		m.gateway = sqlgateway.NewPostgresGateway(connector, postgresOpts)

		return nil
	}
}

func WithPostgresNoLock() PostgresOptionFunc {
	return func(postgresOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		postgresOpts.NoLock = true
	}
}

func WithPostgresLockKey(key int) PostgresOptionFunc {
	return func(postgresOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		postgresOpts.LockKey = key
	}
}

func WithPostgresMigrationTable(migrationTable string) PostgresOptionFunc {
	return func(postgresOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		postgresOpts.MigrationsTable = migrationTable
	}
}

func WithPostgresConnectionTimeout(timeout time.Duration) PostgresOptionFunc {
	return func(postgresOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithPostgresMaxConnectionAttempts(attempts int) PostgresOptionFunc {
	return func(postgresOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
