package database

import (
	"context"
	"io"

	"github.com/denismitr/bakery/internal/logger"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

var ErrTxDeadlock = errors.New("transaction deadlock occurred")

const (
	DefaultMigrationsTable = "migrations"

	ASC  = "ASC"
	DESC = "DESC"
)

type CommonOptions struct {
	MigrationsTable string
	Charset         string
}

// ReadFilter narrows down the log read from the repository.
// Steps restricts the result to the last Steps batches, zero means all.
type ReadFilter struct {
	Steps int
	Sort  string
}

// Repository is the log of applied migrations
type Repository interface {
	List(ctx context.Context, f ReadFilter) ([]string, error)
	Records(ctx context.Context, f ReadFilter) (migration.Records, error)
	Get(ctx context.Context, identifier string) (migration.Record, error)
	Has(ctx context.Context, identifier string) (bool, error)
	LastBatch(ctx context.Context) ([]string, error)
	Log(ctx context.Context, identifier string, batch migration.Batch) error
	Remove(ctx context.Context, identifier string) error
	NextBatchNumber(ctx context.Context) (migration.Batch, error)
	LastBatchNumber(ctx context.Context) (migration.Batch, error)

	Create(ctx context.Context) error
	Delete(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
}

// Connection runs migrations against the target schema
type Connection interface {
	SupportsTransactionalSchema() bool
	Schema() migration.Schema
	Transaction(ctx context.Context, fn func(s migration.Schema) error) error
	Pretend(ctx context.Context, fn func(s migration.Schema) error) ([]string, error)
}

type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Gateway is everything the migrator needs from a database
type Gateway interface {
	io.Closer
	Repository
	Connection
	Locker

	SetLogger(lg logger.Logger)
}

// MinBatch is the lowest batch number included in the last steps batches
func MinBatch(last migration.Batch, steps int) migration.Batch {
	if steps <= 0 || last == 0 {
		return 1
	}

	if int(last)-steps+1 < 1 {
		return 1
	}

	return last - migration.Batch(steps) + 1
}
