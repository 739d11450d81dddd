package bakery

import (
	"context"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/logger"
	"github.com/denismitr/bakery/internal/planner"
	"github.com/denismitr/bakery/internal/source"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

var ErrGatewayNotInitialized = errors.New("database gateway has not been initialized")

type CloserFunc func() error

// Pretended holds the statements a migration would have executed
type Pretended struct {
	Identifier string
	Queries    []string
}

type Status struct {
	Installed migration.Records
	Pending   []string
	Stale     []string
}

type Migrator struct {
	lg       logger.Logger
	gateway  database.Gateway
	locator  source.Locator
	resolver *planner.Resolver
	planner  *planner.RollbackPlanner
}

// NewMigrator creates a migrator using option callbacks to choose the database
// and the source of migrations, when no source is given migrations are read
// from the default local folder
func NewMigrator(opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := new(Migrator)
	m.lg = &logger.NullLogger{}

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			return nil, nil, err
		}
	}

	if m.gateway == nil {
		return nil, nil, ErrGatewayNotInitialized
	}

	if m.locator == nil {
		localFsSource, err := source.NewLocalFSSource(
			source.DefaultMigrationsFolder,
			m.lg,
			migration.TimestampFormat,
		)

		if err != nil {
			if gatewayErr := m.gateway.Close(); gatewayErr != nil {
				return nil, nil, errors.Wrap(err, gatewayErr.Error())
			}

			return nil, nil, err
		}

		m.locator = localFsSource
	}

	m.gateway.SetLogger(m.lg)
	m.resolver = planner.NewResolver(m.locator, m.gateway)
	m.planner = planner.NewRollbackPlanner(m.resolver)

	return m, m.close, nil
}

// Migrate applies pending migrations, dependencies first, and returns
// their identifiers in the order they were applied
func (m *Migrator) Migrate(ctx context.Context, cfs ...ActionConfigurator) ([]string, error) {
	act := newAction(cfs...)

	var migrated []string
	err := m.underLock(ctx, func() error {
		var err error
		migrated, err = m.migrate(ctx, act)
		return err
	})

	return migrated, err
}

// PretendToMigrate collects statements pending migrations would execute
func (m *Migrator) PretendToMigrate(ctx context.Context) ([]Pretended, error) {
	pending, err := m.resolver.Pending(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	return m.pretend(ctx, pending, migration.OperationMigrate)
}

// Rollback undoes the last batch, or the last steps batches, most recent first
func (m *Migrator) Rollback(ctx context.Context, cfs ...ActionConfigurator) ([]string, error) {
	act := newAction(cfs...)

	var rolledBack []string
	err := m.underLock(ctx, func() error {
		targets, err := m.rollbackTargets(ctx, act)
		if err != nil {
			return err
		}

		rolledBack, err = m.rollback(ctx, targets)
		return err
	})

	return rolledBack, err
}

func (m *Migrator) PretendToRollback(ctx context.Context, cfs ...ActionConfigurator) ([]Pretended, error) {
	targets, err := m.rollbackTargets(ctx, newAction(cfs...))
	if err != nil {
		return nil, err
	}

	return m.pretend(ctx, targets, migration.OperationRollback)
}

// Reset undoes every installed migration
func (m *Migrator) Reset(ctx context.Context) ([]string, error) {
	var rolledBack []string
	err := m.underLock(ctx, func() error {
		targets, err := m.planner.ForReset(ctx)
		if err != nil {
			m.lg.Error(err)
			return err
		}

		rolledBack, err = m.rollback(ctx, targets)
		return err
	})

	return rolledBack, err
}

func (m *Migrator) PretendToReset(ctx context.Context) ([]Pretended, error) {
	targets, err := m.planner.ForReset(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	return m.pretend(ctx, targets, migration.OperationRollback)
}

// Refresh first rolls back the last steps batches and then migrates again
func (m *Migrator) Refresh(ctx context.Context, cfs ...ActionConfigurator) ([]string, []string, error) {
	act := newAction(cfs...)

	var rolledBack, migrated []string
	err := m.underLock(ctx, func() error {
		targets, err := m.rollbackTargets(ctx, act)
		if err != nil {
			return err
		}

		if rolledBack, err = m.rollback(ctx, targets); err != nil {
			return err
		}

		migrated, err = m.migrate(ctx, act)
		return err
	})

	return rolledBack, migrated, err
}

// Clean removes stale migrations from the log, their schema changes stay
func (m *Migrator) Clean(ctx context.Context) ([]string, error) {
	var removed []string
	err := m.underLock(ctx, func() error {
		stale, err := m.resolver.Stale(ctx)
		if err != nil {
			return err
		}

		removed = make([]string, 0, len(stale))
		for _, identifier := range stale {
			if err := m.gateway.Remove(ctx, identifier); err != nil {
				return err
			}

			m.lg.Successf("removed stale migration [%s] from the log", identifier)
			removed = append(removed, identifier)
		}

		return nil
	})

	return removed, err
}

func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	return m.resolver.Pending(ctx)
}

func (m *Migrator) Stale(ctx context.Context) ([]string, error) {
	return m.resolver.Stale(ctx)
}

func (m *Migrator) Installed(ctx context.Context) ([]string, error) {
	return m.resolver.Installed(ctx)
}

func (m *Migrator) Available(ctx context.Context) ([]string, error) {
	return m.resolver.Available(ctx)
}

func (m *Migrator) CanRollback(ctx context.Context, identifier string) (bool, error) {
	return m.planner.CanRollback(ctx, identifier)
}

func (m *Migrator) ValidateRollback(ctx context.Context, identifier string) error {
	return m.planner.Validate(ctx, identifier, nil)
}

func (m *Migrator) Status(ctx context.Context) (*Status, error) {
	installed, err := m.gateway.Records(ctx, database.ReadFilter{Sort: database.ASC})
	if err != nil {
		return nil, err
	}

	pending, err := m.resolver.Pending(ctx)
	if err != nil {
		return nil, err
	}

	stale, err := m.resolver.Stale(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{Installed: installed, Pending: pending, Stale: stale}, nil
}

func (m *Migrator) RepositoryExists(ctx context.Context) (bool, error) {
	return m.gateway.Exists(ctx)
}

func (m *Migrator) CreateRepository(ctx context.Context) error {
	return m.gateway.Create(ctx)
}

func (m *Migrator) DropRepository(ctx context.Context) error {
	return m.underLock(ctx, func() error {
		return m.gateway.Delete(ctx)
	})
}

// Source returns the migrations source if it can also create migrations
func (m *Migrator) Source() source.Source {
	if s, ok := m.locator.(source.Source); ok {
		return s
	}

	return nil
}

func (m *Migrator) close() error {
	if m.gateway == nil {
		return ErrGatewayNotInitialized
	}

	if err := m.gateway.Close(); err != nil {
		m.lg.Error(err)
		return err
	}

	return nil
}

func (m *Migrator) migrate(ctx context.Context, act *action) ([]string, error) {
	pending, err := m.resolver.Pending(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	if len(pending) == 0 {
		m.lg.Debugf("nothing to migrate")
		return []string{}, nil
	}

	definitions, err := m.definitions(ctx, pending)
	if err != nil {
		return nil, err
	}

	batch, err := m.gateway.NextBatchNumber(ctx)
	if err != nil {
		return nil, err
	}

	m.lg.Debugf("migrating %d migrations starting with batch %d", len(definitions), batch)

	migrated := make([]string, 0, len(definitions))
	for _, d := range definitions {
		if err := m.run(ctx, d, migration.OperationMigrate, d.Up); err != nil {
			return migrated, err
		}

		if err := m.gateway.Log(ctx, d.Identifier(), batch); err != nil {
			m.lg.Error(err)
			return migrated, err
		}

		m.lg.Successf("migrated [%s], batch %d", d.Identifier(), batch)
		migrated = append(migrated, d.Identifier())

		if act.stepMode {
			batch++
		}
	}

	return migrated, nil
}

func (m *Migrator) rollbackTargets(ctx context.Context, act *action) ([]string, error) {
	var targets []string
	var err error

	if act.migration != "" {
		targets, err = m.planner.ForMigration(ctx, act.migration)
	} else {
		targets, err = m.planner.ForRollback(ctx, act.steps)
	}

	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	return targets, nil
}

func (m *Migrator) rollback(ctx context.Context, targets []string) ([]string, error) {
	if len(targets) == 0 {
		m.lg.Debugf("nothing to rollback")
		return []string{}, nil
	}

	definitions, err := m.definitions(ctx, targets)
	if err != nil {
		return nil, err
	}

	rolledBack := make([]string, 0, len(definitions))
	for _, d := range definitions {
		m.lg.Debugf("rolling back [%s]", d.Identifier())

		if err := m.run(ctx, d, migration.OperationRollback, d.Down); err != nil {
			return rolledBack, err
		}

		if err := m.gateway.Remove(ctx, d.Identifier()); err != nil {
			m.lg.Error(err)
			return rolledBack, err
		}

		m.lg.Successf("rolled back [%s]", d.Identifier())
		rolledBack = append(rolledBack, d.Identifier())
	}

	return rolledBack, nil
}

func (m *Migrator) pretend(ctx context.Context, identifiers []string, operation string) ([]Pretended, error) {
	definitions, err := m.definitions(ctx, identifiers)
	if err != nil {
		return nil, err
	}

	result := make([]Pretended, 0, len(definitions))
	for _, d := range definitions {
		fn := d.Up
		if operation == migration.OperationRollback {
			fn = d.Down
		}

		queries, err := m.gateway.Pretend(ctx, func(s migration.Schema) error {
			return fn(ctx, s)
		})

		if err != nil {
			return nil, &migration.ExecutionError{Identifier: d.Identifier(), Operation: operation, Err: err}
		}

		result = append(result, Pretended{Identifier: d.Identifier(), Queries: queries})
	}

	return result, nil
}

// definitions resolves every identifier before anything is executed
func (m *Migrator) definitions(ctx context.Context, identifiers []string) ([]migration.Definition, error) {
	result := make([]migration.Definition, 0, len(identifiers))
	for _, identifier := range identifiers {
		d, err := m.locator.Get(ctx, identifier)
		if err != nil {
			m.lg.Error(err)
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

// run executes fn in a transaction when the database can roll back schema changes
func (m *Migrator) run(ctx context.Context, d migration.Definition, operation string, fn migration.SchemaFunc) error {
	var err error
	if m.gateway.SupportsTransactionalSchema() {
		err = m.gateway.Transaction(ctx, func(s migration.Schema) error {
			return fn(ctx, s)
		})
	} else {
		err = fn(ctx, m.gateway.Schema())
	}

	if err != nil {
		execErr := &migration.ExecutionError{Identifier: d.Identifier(), Operation: operation, Err: err}
		m.lg.Error(execErr)
		return execErr
	}

	return nil
}

func (m *Migrator) underLock(ctx context.Context, fn func() error) error {
	if err := m.gateway.Lock(ctx); err != nil {
		m.lg.Error(err)
		return err
	}

	err := fn()

	if unlockErr := m.gateway.Unlock(ctx); unlockErr != nil {
		m.lg.Error(unlockErr)
		if err == nil {
			return unlockErr
		}

		return errors.Wrap(err, unlockErr.Error())
	}

	return err
}
