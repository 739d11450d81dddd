package bakery

import (
	"context"
	"testing"

	"github.com/denismitr/bakery/internal/database/memory"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTable(id string, requires ...string) migration.Factory {
	return migration.New(id, []string{"CREATE TABLE " + id}, []string{"DROP TABLE " + id}, requires...)
}

func failing(id string) migration.Factory {
	return migration.NewFunc(id, func(ctx context.Context, s migration.Schema) error {
		if err := s.Exec(ctx, "CREATE TABLE "+id); err != nil {
			return err
		}

		return errors.New("syntax error")
	}, nil)
}

func newInMemoryMigrator(t *testing.T, transactional bool, factories ...migration.Factory) (*Migrator, *memory.Gateway) {
	t.Helper()

	m, closer, err := NewMigrator(UseInMemoryDatabase(transactional), UseInMemorySource(factories...))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, closer())
	})

	gw, ok := m.gateway.(*memory.Gateway)
	require.True(t, ok)

	return m, gw
}

func installed(t *testing.T, m *Migrator) []string {
	t.Helper()

	ids, err := m.Installed(context.Background())
	require.NoError(t, err)

	return ids
}

func Test_MigratorRequiresADatabase(t *testing.T) {
	_, _, err := NewMigrator(UseInMemorySource())
	assert.True(t, errors.Is(err, ErrGatewayNotInitialized))
}

func Test_NothingToMigrate(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true)

	migrated, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, migrated)
	assert.Empty(t, gw.Executed())

	next, err := gw.NextBatchNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.Batch(1), next)
}

func Test_MigrateAppliesDependenciesFirstInOneBatch(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true,
		createTable("A"),
		createTable("B", "C"),
		createTable("C"),
		createTable("E", "D"),
	)
	gw.Seed(1, "A", "D")

	stale, err := m.Stale(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, stale)

	migrated, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "E"}, migrated)
	assert.Equal(t, []string{"CREATE TABLE C", "CREATE TABLE B", "CREATE TABLE E"}, gw.Executed())

	for _, id := range migrated {
		r, err := gw.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, migration.Batch(2), r.Batch)
	}

	next, err := gw.NextBatchNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.Batch(3), next)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, pending)
}

func Test_StepModeGivesEveryMigrationItsOwnBatch(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("a"), createTable("b"), createTable("c"))

	migrated, err := m.Migrate(ctx, WithStepMode())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, migrated)

	for i, id := range migrated {
		r, err := gw.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, migration.Batch(i+1), r.Batch)
	}

	rolledBack, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, rolledBack)
	assert.Equal(t, []string{"a", "b"}, installed(t, m))
}

func Test_UnmetDependencyLeavesTheLogUntouched(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("A"), createTable("G", "F"))

	migrated, err := m.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, migration.ErrDependencyNotMet))
	assert.Nil(t, migrated)
	assert.Empty(t, gw.Executed())
	assert.Equal(t, []string{}, installed(t, m))
}

func Test_ExecutionFailureStopsTheBatch(t *testing.T) {
	tt := []struct {
		name          string
		transactional bool
		executed      []string
	}{
		{
			name:          "transactional schema discards the failed migration",
			transactional: true,
			executed:      []string{"CREATE TABLE a"},
		},
		{
			name:          "non transactional schema keeps partial changes",
			transactional: false,
			executed:      []string{"CREATE TABLE a", "CREATE TABLE b"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m, gw := newInMemoryMigrator(t, tc.transactional, createTable("a"), failing("b"), createTable("c"))

			migrated, err := m.Migrate(ctx)
			require.Error(t, err)
			assert.Equal(t, []string{"a"}, migrated)

			var execErr *migration.ExecutionError
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, "b", execErr.Identifier)
			assert.Equal(t, migration.OperationMigrate, execErr.Operation)

			assert.Equal(t, tc.executed, gw.Executed())
			assert.Equal(t, []string{"a"}, installed(t, m))
		})
	}
}

func Test_MigrateThenRollbackRestoresInstalledSet(t *testing.T) {
	tt := []struct {
		name  string
		cfs   []ActionConfigurator
		steps int
	}{
		{name: "bulk", steps: 1},
		{name: "step mode", cfs: []ActionConfigurator{WithStepMode()}, steps: 2},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m, gw := newInMemoryMigrator(t, true, createTable("a"), createTable("b", "a"), createTable("c"))
			gw.Seed(1, "a")

			migrated, err := m.Migrate(ctx, tc.cfs...)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c"}, migrated)

			rolledBack, err := m.Rollback(ctx, WithSteps(tc.steps))
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "b"}, rolledBack)
			assert.Equal(t, []string{"a"}, installed(t, m))
			assert.Equal(t, []string{"CREATE TABLE b", "CREATE TABLE c", "DROP TABLE c", "DROP TABLE b"}, gw.Executed())
		})
	}
}

func Test_RollbackBatchesMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("A"), createTable("B", "C"), createTable("C"), createTable("D"))
	gw.Seed(1, "A")
	gw.Seed(2, "C", "B")
	gw.Seed(3, "D")

	pretended, err := m.PretendToRollback(ctx, WithSteps(2))
	require.NoError(t, err)
	assert.Equal(t, []Pretended{
		{Identifier: "D", Queries: []string{"DROP TABLE D"}},
		{Identifier: "B", Queries: []string{"DROP TABLE B"}},
		{Identifier: "C", Queries: []string{"DROP TABLE C"}},
	}, pretended)
	assert.Empty(t, gw.Executed())

	rolledBack, err := m.Rollback(ctx, WithSteps(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "B", "C"}, rolledBack)
	assert.Equal(t, []string{"A"}, installed(t, m))
}

func Test_RollbackOfASingleMigration(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("A"), createTable("B", "C"), createTable("C"), createTable("D"))
	gw.Seed(1, "A", "C", "B", "D")

	ok, err := m.CanRollback(ctx, "C")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.CanRollback(ctx, "D")
	require.NoError(t, err)
	assert.True(t, ok)

	err = m.ValidateRollback(ctx, "C")
	assert.True(t, errors.Is(err, migration.ErrRollbackBlocked))

	_, err = m.Rollback(ctx, WithMigration("C"))
	assert.True(t, errors.Is(err, migration.ErrRollbackBlocked))
	assert.Empty(t, gw.Executed())

	rolledBack, err := m.Rollback(ctx, WithMigration("B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, rolledBack)
	assert.Equal(t, []string{"A", "C", "D"}, installed(t, m))
}

func Test_StaleMigrationsBlockRollback(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("a"))
	gw.Seed(1, "a", "gone")

	_, err := m.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, migration.ErrRollbackBlocked))
	assert.Equal(t, []string{"a", "gone"}, installed(t, m))

	removed, err := m.Clean(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, removed)

	rolledBack, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rolledBack)
}

func Test_PretendToMigrateDoesNotTouchTheDatabase(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true,
		migration.New("users", []string{"CREATE TABLE users (id int)", "CREATE INDEX users_idx ON users (id)"}, nil),
		createTable("posts", "users"),
	)

	pretended, err := m.PretendToMigrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Pretended{
		{Identifier: "users", Queries: []string{"CREATE TABLE users (id int)", "CREATE INDEX users_idx ON users (id)"}},
		{Identifier: "posts", Queries: []string{"CREATE TABLE posts"}},
	}, pretended)

	assert.Empty(t, gw.Executed())
	assert.Equal(t, []string{}, installed(t, m))
}

func Test_ResetAndRefresh(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("a"), createTable("b", "a"), createTable("c"))

	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	rolledBack, migrated, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, rolledBack)
	assert.Equal(t, []string{"a", "b", "c"}, migrated)

	r, err := gw.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, migration.Batch(1), r.Batch)

	pretended, err := m.PretendToReset(ctx)
	require.NoError(t, err)
	assert.Len(t, pretended, 3)
	assert.Equal(t, "c", pretended[0].Identifier)

	rolledBack, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, rolledBack)
	assert.Equal(t, []string{}, installed(t, m))

	rolledBack, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, rolledBack)
}

func Test_Status(t *testing.T) {
	ctx := context.Background()
	m, gw := newInMemoryMigrator(t, true, createTable("a"), createTable("b"))
	gw.Seed(1, "a", "gone")

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "gone"}, status.Installed.Identifiers())
	assert.Equal(t, []string{"b"}, status.Pending)
	assert.Equal(t, []string{"gone"}, status.Stale)

	available, err := m.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, available)

	exists, err := m.RepositoryExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, m.DropRepository(ctx))

	exists, err = m.RepositoryExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.CreateRepository(ctx))

	exists, err = m.RepositoryExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{}, installed(t, m))

	assert.Nil(t, m.Source())
}
