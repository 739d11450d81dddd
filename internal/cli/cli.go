package cli

import (
	"context"
	"time"

	"github.com/denismitr/bakery"
	"github.com/denismitr/bakery/internal/source"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

var (
	ErrMigrationAlreadyExists = errors.New("migration already exists")
	ErrFolderInvalid          = errors.New("migrations folder is invalid")
	ErrSourceTypeIsNotValid   = errors.New("source type is not valid")
)

type (
	CloserFunc func() error

	ActionConfig struct {
		Steps     int
		StepMode  bool
		Migration string
		Pretend   bool
	}

	App struct {
		cfg      Config
		source   source.Source
		migrator *bakery.Migrator
		clock    migration.ClockFunc
	}
)

func NewFromYaml(path string, debug bool) (*App, CloserFunc, error) {
	cfg, err := createConfigFromYaml(path)
	if err != nil {
		return nil, nil, err
	}

	return New(cfg, debug)
}

func New(cfg Config, debug bool) (*App, CloserFunc, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	m, closer, err := createMigrator(cfg, debug)
	if err != nil {
		return nil, nil, err
	}

	s := m.Source()
	if s == nil {
		_ = closer()
		return nil, nil, ErrSourceTypeIsNotValid
	}

	return &App{
		cfg:      cfg,
		source:   s,
		migrator: m,
		clock:    time.Now,
	}, CloserFunc(closer), nil
}

// CreateMigration writes new migration files into the migrations folder and
// returns the key of the new migration
func (app *App) CreateMigration(name string, withRollback bool) (string, error) {
	if !app.source.IsValid() {
		return "", ErrFolderInvalid
	}

	v := migration.GenerateVersion(app.clock, app.cfg.VersionFormat)

	if app.source.AlreadyExists(v, name) {
		return "", errors.Wrapf(ErrMigrationAlreadyExists, "version [%s] name [%s]", v, name)
	}

	return app.source.Create(v, name, withRollback)
}

func (app *App) Migrate(ctx context.Context, cfg ActionConfig) ([]string, []bakery.Pretended, error) {
	if cfg.Pretend {
		pretended, err := app.migrator.PretendToMigrate(ctx)
		return nil, pretended, err
	}

	migrated, err := app.migrator.Migrate(ctx, bakery.CreateConfigurators(0, cfg.StepMode, "")...)
	return migrated, nil, err
}

func (app *App) Rollback(ctx context.Context, cfg ActionConfig) ([]string, []bakery.Pretended, error) {
	configurators := bakery.CreateConfigurators(cfg.Steps, false, cfg.Migration)

	if cfg.Pretend {
		pretended, err := app.migrator.PretendToRollback(ctx, configurators...)
		return nil, pretended, err
	}

	rolledBack, err := app.migrator.Rollback(ctx, configurators...)
	return rolledBack, nil, err
}

// Reset rolls back every installed migration, hard reset drops the
// migrations log entirely instead
func (app *App) Reset(ctx context.Context, pretend, hard bool) ([]string, []bakery.Pretended, error) {
	if pretend {
		pretended, err := app.migrator.PretendToReset(ctx)
		return nil, pretended, err
	}

	if hard {
		return nil, nil, app.migrator.DropRepository(ctx)
	}

	rolledBack, err := app.migrator.Reset(ctx)
	return rolledBack, nil, err
}

func (app *App) Refresh(ctx context.Context, cfg ActionConfig) ([]string, []string, error) {
	return app.migrator.Refresh(ctx, bakery.CreateConfigurators(cfg.Steps, cfg.StepMode, "")...)
}

func (app *App) Clean(ctx context.Context) ([]string, error) {
	return app.migrator.Clean(ctx)
}

func (app *App) Status(ctx context.Context) (*bakery.Status, error) {
	return app.migrator.Status(ctx)
}
