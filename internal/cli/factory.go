package cli

import (
	"log"
	"os"
	"strconv"

	"github.com/denismitr/bakery"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/xo/dburl"
)

var (
	ErrUnknownDriver  = errors.New("unknown database driver")
	ErrInvalidLockKey = errors.New("lock key is invalid")
)

type (
	migratorFactory    func(db *sqlx.DB, cfg Config) (bakery.OptionFunc, error)
	migratorFactoryMap map[string]migratorFactory
)

var factories = migratorFactoryMap{
	"mysql":    mysqlOption,
	"postgres": postgresOption,
	"sqlite3":  sqliteOption,
}

func createMigrator(cfg Config, debug bool) (*bakery.Migrator, bakery.CloserFunc, error) {
	u, err := dburl.Parse(cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not parse database url")
	}

	factory, ok := factories[u.Driver]
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknownDriver, "[%s]", u.Driver)
	}

	dsn, err := dataSourceName(u)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlx.Open(u.Driver, dsn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open %s connection", u.Driver)
	}

	dbOption, err := factory(db, cfg)
	if err != nil {
		if errClose := db.Close(); errClose != nil {
			return nil, nil, errors.Wrap(err, errClose.Error())
		}

		return nil, nil, err
	}

	m, closer, err := bakery.NewMigrator(
		bakery.UseColorLogger(log.New(os.Stdout, "", 0), debug, debug),
		dbOption,
		bakery.UseLocalFolderSource(cfg.MigrationsFolder, bakery.WithVersionFormat(cfg.VersionFormat)),
	)

	if err != nil {
		if errClose := db.Close(); errClose != nil {
			return nil, nil, errors.Wrap(err, errClose.Error())
		}

		return nil, nil, err
	}

	return m, func() error {
		if err := closer(); err != nil {
			_ = db.Close()
			return err
		}

		return db.Close()
	}, nil
}

// dataSourceName converts the url into the form the driver expects,
// mysql needs parseTime for the migrated_at column to scan
func dataSourceName(u *dburl.URL) (string, error) {
	if u.Driver != "mysql" {
		return u.DSN, nil
	}

	mysqlCfg, err := mysql.ParseDSN(u.DSN)
	if err != nil {
		return "", errors.Wrap(err, "could not parse mysql dsn")
	}

	mysqlCfg.ParseTime = true
	mysqlCfg.MultiStatements = false

	return mysqlCfg.FormatDSN(), nil
}

func mysqlOption(db *sqlx.DB, cfg Config) (bakery.OptionFunc, error) {
	var opts []bakery.MySQLOptionFunc
	if cfg.MigrationsTable != "" {
		opts = append(opts, bakery.WithMySQLMigrationTable(cfg.MigrationsTable))
	}

	if cfg.LockKey != "" {
		opts = append(opts, bakery.WithMySQLLockKey(cfg.LockKey))
	}

	if cfg.NoLock {
		opts = append(opts, bakery.WithMySQLNoLock())
	}

	return bakery.UseMySQL(db.DB, opts...), nil
}

func postgresOption(db *sqlx.DB, cfg Config) (bakery.OptionFunc, error) {
	var opts []bakery.PostgresOptionFunc
	if cfg.MigrationsTable != "" {
		opts = append(opts, bakery.WithPostgresMigrationTable(cfg.MigrationsTable))
	}

	if cfg.LockKey != "" {
		key, err := strconv.Atoi(cfg.LockKey)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidLockKey, "postgres advisory lock key must be an integer, got [%s]", cfg.LockKey)
		}

		opts = append(opts, bakery.WithPostgresLockKey(key))
	}

	if cfg.NoLock {
		opts = append(opts, bakery.WithPostgresNoLock())
	}

	return bakery.UsePostgres(db.DB, opts...), nil
}

func sqliteOption(db *sqlx.DB, cfg Config) (bakery.OptionFunc, error) {
	var opts []bakery.SqliteOptionFunc
	if cfg.MigrationsTable != "" {
		opts = append(opts, bakery.WithSqliteMigrationTable(cfg.MigrationsTable))
	}

	return bakery.UseSqlite(db.DB, opts...), nil
}
