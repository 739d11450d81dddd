package sqlgateway

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/database/sqlgateway/mysql"
	"github.com/denismitr/bakery/internal/database/sqlgateway/postgres"
	"github.com/denismitr/bakery/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/bakery/internal/logger"
	"github.com/denismitr/bakery/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Gateway keeps the migrations log in a table and runs migrations
// on the same database session
type Gateway struct {
	mu sync.Mutex

	connector SQLConnector
	dialect   database.Dialect
	locker    database.SessionLocker
	lg        logger.Logger
	clock     migration.ClockFunc

	tableReady bool
}

var _ database.Gateway = (*Gateway)(nil)

func NewMySQLGateway(connector SQLConnector, opts *mysql.Options) *Gateway {
	return newGateway(
		connector,
		mysql.NewDialect(opts.MigrationsTable, opts.Charset),
		mysql.NewLocker(opts.LockKey, opts.LockFor, opts.NoLock),
	)
}

func NewPostgresGateway(connector SQLConnector, opts *postgres.Options) *Gateway {
	return newGateway(
		connector,
		postgres.NewDialect(opts.MigrationsTable),
		postgres.NewLocker(opts.LockKey, opts.NoLock),
	)
}

func NewSqliteGateway(connector SQLConnector, opts *sqlite.Options) *Gateway {
	return newGateway(connector, sqlite.NewDialect(opts.MigrationsTable), database.NullLocker{})
}

func newGateway(connector SQLConnector, dialect database.Dialect, locker database.SessionLocker) *Gateway {
	return &Gateway{
		connector: connector,
		dialect:   dialect,
		locker:    locker,
		lg:        &logger.NullLogger{},
		clock:     time.Now,
	}
}

func (g *Gateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *Gateway) Close() error {
	return g.connector.Close()
}

func (g *Gateway) List(ctx context.Context, f database.ReadFilter) ([]string, error) {
	records, err := g.Records(ctx, f)
	if err != nil {
		return nil, err
	}

	return records.Identifiers(), nil
}

func (g *Gateway) Records(ctx context.Context, f database.ReadFilter) (migration.Records, error) {
	conn, err := g.ready(ctx)
	if err != nil {
		return nil, err
	}

	var minBatch migration.Batch = 1
	if f.Steps > 0 {
		last, err := g.LastBatchNumber(ctx)
		if err != nil {
			return nil, err
		}

		minBatch = database.MinBatch(last, f.Steps)
	}

	q, args := g.dialect.ReadQuery(minBatch, f.Sort)

	var records migration.Records
	if err := conn.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, errors.Wrapf(err, "could not read migrations from %s", g.dialect.MigrationsTable())
	}

	return records, nil
}

func (g *Gateway) Get(ctx context.Context, identifier string) (migration.Record, error) {
	conn, err := g.ready(ctx)
	if err != nil {
		return migration.Record{}, err
	}

	var record migration.Record
	q, args := g.dialect.GetQuery(identifier)
	if err := conn.GetContext(ctx, &record, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return migration.Record{}, errors.Wrapf(migration.ErrNotFound, "[%s] is not in the migrations log", identifier)
		}

		return migration.Record{}, errors.Wrapf(err, "could not read migration [%s]", identifier)
	}

	return record, nil
}

func (g *Gateway) Has(ctx context.Context, identifier string) (bool, error) {
	if _, err := g.Get(ctx, identifier); err != nil {
		if errors.Is(err, migration.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (g *Gateway) LastBatch(ctx context.Context) ([]string, error) {
	last, err := g.LastBatchNumber(ctx)
	if err != nil {
		return nil, err
	}

	if last == 0 {
		return []string{}, nil
	}

	conn, err := g.ready(ctx)
	if err != nil {
		return nil, err
	}

	q, args := g.dialect.ReadQuery(last, database.DESC)

	var records migration.Records
	if err := conn.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, errors.Wrapf(err, "could not read the last batch from %s", g.dialect.MigrationsTable())
	}

	return records.Identifiers(), nil
}

func (g *Gateway) Log(ctx context.Context, identifier string, batch migration.Batch) error {
	has, err := g.Has(ctx, identifier)
	if err != nil {
		return err
	}

	if has {
		return errors.Wrapf(migration.ErrAlreadyLogged, "[%s]", identifier)
	}

	if batch == 0 {
		if batch, err = g.NextBatchNumber(ctx); err != nil {
			return err
		}
	}

	conn, err := g.ready(ctx)
	if err != nil {
		return err
	}

	q, args := g.dialect.InsertQuery(identifier, batch, g.clock().UTC())
	g.lg.SQL(q, args...)

	if _, err := conn.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "could not log migration [%s] with batch %d", identifier, batch)
	}

	return nil
}

func (g *Gateway) Remove(ctx context.Context, identifier string) error {
	conn, err := g.ready(ctx)
	if err != nil {
		return err
	}

	q, args := g.dialect.RemoveQuery(identifier)
	g.lg.SQL(q, args...)

	if _, err := conn.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "could not remove migration [%s]", identifier)
	}

	return nil
}

func (g *Gateway) NextBatchNumber(ctx context.Context) (migration.Batch, error) {
	last, err := g.LastBatchNumber(ctx)
	if err != nil {
		return 0, err
	}

	return last + 1, nil
}

func (g *Gateway) LastBatchNumber(ctx context.Context) (migration.Batch, error) {
	conn, err := g.ready(ctx)
	if err != nil {
		return 0, err
	}

	var last int64
	if err := conn.QueryRowxContext(ctx, g.dialect.LastBatchQuery()).Scan(&last); err != nil {
		return 0, errors.Wrapf(err, "could not read last batch number from %s", g.dialect.MigrationsTable())
	}

	return migration.Batch(last), nil
}

func (g *Gateway) Create(ctx context.Context) error {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.lg.SQL(g.dialect.InitQuery())

	if _, err := conn.ExecContext(ctx, g.dialect.InitQuery()); err != nil {
		return errors.Wrapf(err, "could not create migrations table %s", g.dialect.MigrationsTable())
	}

	g.tableReady = true

	return nil
}

func (g *Gateway) Delete(ctx context.Context) error {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.lg.SQL(g.dialect.DropQuery())

	if _, err := conn.ExecContext(ctx, g.dialect.DropQuery()); err != nil {
		return errors.Wrapf(err, "could not drop migrations table %s", g.dialect.MigrationsTable())
	}

	g.tableReady = false

	return nil
}

func (g *Gateway) Exists(ctx context.Context) (bool, error) {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return false, err
	}

	var tables []string
	if err := conn.SelectContext(ctx, &tables, g.dialect.ShowTablesQuery()); err != nil {
		return false, errors.Wrap(err, "could not list all tables")
	}

	return migration.InStrings(g.dialect.MigrationsTable(), tables), nil
}

func (g *Gateway) SupportsTransactionalSchema() bool {
	return g.dialect.SupportsTransactionalSchema()
}

func (g *Gateway) Schema() migration.Schema {
	return &lazySchema{g: g}
}

func (g *Gateway) Transaction(ctx context.Context, fn func(s migration.Schema) error) error {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	return isolate(ctx, conn, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(&schema{ex: tx, lg: g.lg})
	}, TxConfig{})
}

func (g *Gateway) Pretend(ctx context.Context, fn func(s migration.Schema) error) ([]string, error) {
	return database.Pretend(ctx, fn)
}

func (g *Gateway) Lock(ctx context.Context) error {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	if err := g.locker.Lock(ctx, conn); err != nil {
		return errors.Wrap(err, "database lock failed")
	}

	return nil
}

func (g *Gateway) Unlock(ctx context.Context) error {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	return g.locker.Unlock(ctx, conn)
}

// ready connects and creates the migrations table the first time it is needed
func (g *Gateway) ready(ctx context.Context) (*sqlx.Conn, error) {
	conn, err := g.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	ready := g.tableReady
	g.mu.Unlock()

	if !ready {
		if err := g.Create(ctx); err != nil {
			return nil, err
		}
	}

	return conn, nil
}
