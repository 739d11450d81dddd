package cli

import (
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "bakery.yaml"

const configFileStub = `version: 1
migrations:
  database_url: "%%BAKERY_DATABASE_URL%%"
  local_folder: "./migrations"
  version_format: "timestamp"
  migrations_table: "migrations"
  lock_key: ""
  no_lock: false
`

var (
	ErrInvalidVersionFormat = errors.New("version format is invalid")
	ErrDatabaseUrlMissing   = errors.New("database url was not defined")
	ErrFolderMissing        = errors.New("migrations folder was not defined")
)

var allowedVersionFormats = []migration.VersionFormat{migration.TimestampFormat, migration.DatetimeFormat}

type (
	// Config describes where migrations live and which database they are applied to
	Config struct {
		DatabaseUrl      string
		MigrationsFolder string
		VersionFormat    migration.VersionFormat
		MigrationsTable  string
		LockKey          string
		NoLock           bool
	}

	migrations struct {
		LocalFolder     string `yaml:"local_folder"`
		DatabaseURL     string `yaml:"database_url"`
		VersionFormat   string `yaml:"version_format"`
		MigrationsTable string `yaml:"migrations_table"`
		LockKey         string `yaml:"lock_key"`
		NoLock          bool   `yaml:"no_lock"`
	}

	configFile struct {
		Version    string     `yaml:"version"`
		Migrations migrations `yaml:"migrations"`
	}
)

func createConfigFromYaml(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(err, "could not open bakery configuration file")
	}

	defer func() {
		if errClose := f.Close(); errClose != nil {
			panic(errClose)
		}
	}()

	b, err := ioutil.ReadAll(f)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read bakery configuration file")
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse bakery configuration file")
	}

	cfg.DatabaseUrl = fromEnv(cfgFile.Migrations.DatabaseURL)
	cfg.MigrationsFolder = fromEnv(cfgFile.Migrations.LocalFolder)
	cfg.MigrationsTable = fromEnv(cfgFile.Migrations.MigrationsTable)
	cfg.LockKey = fromEnv(cfgFile.Migrations.LockKey)
	cfg.NoLock = cfgFile.Migrations.NoLock

	if cfgFile.Migrations.VersionFormat == "" {
		cfg.VersionFormat = migration.TimestampFormat
	} else {
		for _, format := range allowedVersionFormats {
			if string(format) == cfgFile.Migrations.VersionFormat {
				cfg.VersionFormat = format
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.DatabaseUrl == "" {
		return ErrDatabaseUrlMissing
	}

	if cfg.MigrationsFolder == "" {
		return ErrFolderMissing
	}

	for _, format := range allowedVersionFormats {
		if format == cfg.VersionFormat {
			return nil
		}
	}

	return errors.Wrapf(ErrInvalidVersionFormat, "[%s]", cfg.VersionFormat)
}

// fromEnv resolves values written as %%VAR_NAME%% from the environment
func fromEnv(value string) string {
	if len(value) > 4 && strings.HasPrefix(value, "%%") && strings.HasSuffix(value, "%%") {
		return os.Getenv(strings.Trim(value, "%"))
	}

	return value
}

// InitCfg writes a configuration file stub
func InitCfg(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()

	if _, err := io.Copy(f, strings.NewReader(configFileStub)); err != nil {
		return errors.Wrap(err, "could not write config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) || err != nil {
		return false
	}
	return !info.IsDir()
}
