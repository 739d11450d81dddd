package sqlgateway

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/database/sqlgateway/mysql"
	"github.com/denismitr/bakery/internal/database/sqlgateway/postgres"
	"github.com/denismitr/bakery/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/bakery/migration"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: 3,
		MaxTimeout:  5 * time.Second,
		RetryStep:   10 * time.Millisecond,
	}
}

func newSqliteGateway(t *testing.T, table string) *Gateway {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	g := NewSqliteGateway(MakeRetryingConnector(db, testConnectOptions()), &sqlite.Options{
		CommonOptions: database.CommonOptions{MigrationsTable: table},
	})

	t.Cleanup(func() {
		assert.NoError(t, g.Close())
		assert.NoError(t, db.Close())
	})

	return g
}

func TestNewGateway(t *testing.T) {
	t.Run("sqlite default options", func(t *testing.T) {
		g := NewSqliteGateway(MakeRetryingConnector(nil, nil), &sqlite.Options{})

		assert.Equal(t, "migrations", g.dialect.MigrationsTable())
		assert.True(t, g.SupportsTransactionalSchema())
		assert.IsType(t, database.NullLocker{}, g.locker)
	})

	t.Run("mysql custom options", func(t *testing.T) {
		g := NewMySQLGateway(MakeRetryingConnector(nil, nil), &mysql.Options{
			CommonOptions: database.CommonOptions{MigrationsTable: "foo"},
			LockKey:       "foobar",
			LockFor:       2,
		})

		assert.Equal(t, "foo", g.dialect.MigrationsTable())
		assert.False(t, g.SupportsTransactionalSchema())
		assert.IsType(t, &mysql.Locker{}, g.locker)
	})

	t.Run("postgres default options", func(t *testing.T) {
		g := NewPostgresGateway(MakeRetryingConnector(nil, nil), &postgres.Options{})

		assert.Equal(t, "migrations", g.dialect.MigrationsTable())
		assert.True(t, g.SupportsTransactionalSchema())
	})
}

func testRepository(t *testing.T, g *Gateway) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, g.Delete(ctx))

	exists, err := g.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	t.Run("empty log", func(t *testing.T) {
		ids, err := g.List(ctx, database.ReadFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{}, ids)

		exists, err := g.Exists(ctx)
		require.NoError(t, err)
		assert.True(t, exists)

		last, err := g.LastBatchNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, migration.Batch(0), last)

		next, err := g.NextBatchNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, migration.Batch(1), next)

		lastBatch, err := g.LastBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{}, lastBatch)
	})

	t.Run("identifier can only be logged once", func(t *testing.T) {
		require.NoError(t, g.Log(ctx, "foo", 2))

		err := g.Log(ctx, "foo", 3)
		assert.True(t, errors.Is(err, migration.ErrAlreadyLogged))

		r, err := g.Get(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, migration.Batch(2), r.Batch)
		assert.False(t, r.MigratedAt.IsZero())

		require.NoError(t, g.Remove(ctx, "foo"))
	})

	t.Run("batches", func(t *testing.T) {
		require.NoError(t, g.Log(ctx, "A", 1))
		require.NoError(t, g.Log(ctx, "C", 2))
		require.NoError(t, g.Log(ctx, "B", 2))
		require.NoError(t, g.Log(ctx, "D", 0))

		ids, err := g.List(ctx, database.ReadFilter{Sort: database.ASC})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C", "B", "D"}, ids)

		ids, err = g.List(ctx, database.ReadFilter{Steps: 2, Sort: database.DESC})
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "B", "C"}, ids)

		lastBatch, err := g.LastBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"D"}, lastBatch)

		d, err := g.Get(ctx, "D")
		require.NoError(t, err)
		assert.Equal(t, migration.Batch(3), d.Batch)

		has, err := g.Has(ctx, "B")
		require.NoError(t, err)
		assert.True(t, has)

		require.NoError(t, g.Remove(ctx, "B"))
		require.NoError(t, g.Remove(ctx, "B"))

		has, err = g.Has(ctx, "B")
		require.NoError(t, err)
		assert.False(t, has)

		_, err = g.Get(ctx, "B")
		assert.True(t, errors.Is(err, migration.ErrNotFound))
	})

	t.Run("delete drops the log and the next access recreates it", func(t *testing.T) {
		require.NoError(t, g.Delete(ctx))

		exists, err := g.Exists(ctx)
		require.NoError(t, err)
		assert.False(t, exists)

		ids, err := g.List(ctx, database.ReadFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{}, ids)
	})
}

func TestSqliteRepository(t *testing.T) {
	testRepository(t, newSqliteGateway(t, "schema_migrations"))
}

func TestSqliteTransactions(t *testing.T) {
	ctx := context.Background()
	g := newSqliteGateway(t, "")

	t.Run("failed transaction leaves no schema changes", func(t *testing.T) {
		err := g.Transaction(ctx, func(s migration.Schema) error {
			if err := s.Exec(ctx, "CREATE TABLE foo (id INTEGER PRIMARY KEY)"); err != nil {
				return err
			}

			return s.Exec(ctx, "INSERT INTO missing (id) VALUES (?)", 1)
		})
		require.Error(t, err)

		err = g.Schema().Exec(ctx, "INSERT INTO foo (id) VALUES (1)")
		assert.Error(t, err)
	})

	t.Run("successful transaction is committed", func(t *testing.T) {
		require.NoError(t, g.Transaction(ctx, func(s migration.Schema) error {
			return s.Exec(ctx, "CREATE TABLE bar (id INTEGER PRIMARY KEY)")
		}))

		assert.NoError(t, g.Schema().Exec(ctx, "INSERT INTO bar (id) VALUES (?)", 1))
	})

	t.Run("pretend does not touch the database", func(t *testing.T) {
		queries, err := g.Pretend(ctx, func(s migration.Schema) error {
			return s.Exec(ctx, "CREATE TABLE baz (id INTEGER PRIMARY KEY)")
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"CREATE TABLE baz (id INTEGER PRIMARY KEY)"}, queries)

		assert.Error(t, g.Schema().Exec(ctx, "INSERT INTO baz (id) VALUES (1)"))
	})

	t.Run("sqlite never locks", func(t *testing.T) {
		assert.NoError(t, g.Lock(ctx))
		assert.NoError(t, g.Unlock(ctx))
	})
}

func TestMySQLRepository(t *testing.T) {
	dsn := os.Getenv("BAKERY_MYSQL_DSN")
	if dsn == "" {
		t.Skip("BAKERY_MYSQL_DSN is not set")
	}

	db, err := sqlx.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()

	g := NewMySQLGateway(MakeRetryingConnector(db, testConnectOptions()), &mysql.Options{
		CommonOptions: database.CommonOptions{MigrationsTable: "bakery_test_migrations"},
		LockKey:       "bakery_test",
		LockFor:       3,
	})
	defer g.Close()

	require.NoError(t, g.Lock(context.Background()))
	defer func() { assert.NoError(t, g.Unlock(context.Background())) }()

	testRepository(t, g)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("BAKERY_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BAKERY_POSTGRES_DSN is not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(MakeRetryingConnector(db, testConnectOptions()), &postgres.Options{
		CommonOptions: database.CommonOptions{MigrationsTable: "bakery_test_migrations"},
	})
	defer g.Close()

	require.NoError(t, g.Lock(context.Background()))
	defer func() { assert.NoError(t, g.Unlock(context.Background())) }()

	testRepository(t, g)
}
