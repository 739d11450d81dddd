package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/denismitr/bakery/migration"
	"github.com/jmoiron/sqlx"
)

// Executor is a database session statements and lock queries run on
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

// Dialect knows how the migrations table looks in a particular database
type Dialect interface {
	MigrationsTable() string
	SupportsTransactionalSchema() bool

	InitQuery() string
	DropQuery() string
	ShowTablesQuery() string
	InsertQuery(identifier string, batch migration.Batch, migratedAt time.Time) (string, []interface{})
	RemoveQuery(identifier string) (string, []interface{})
	GetQuery(identifier string) (string, []interface{})
	ReadQuery(minBatch migration.Batch, sort string) (string, []interface{})
	LastBatchQuery() string
}

// SessionLocker takes a database wide lock bound to the session it runs on
type SessionLocker interface {
	Lock(ctx context.Context, ex Executor) error
	Unlock(ctx context.Context, ex Executor) error
}

type NullLocker struct{}

func (NullLocker) Lock(context.Context, Executor) error {
	return nil
}

func (NullLocker) Unlock(context.Context, Executor) error {
	return nil
}
