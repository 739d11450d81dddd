package source

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/denismitr/bakery/internal/logger"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const DefaultMigrationsFolder = "./migrations"

const (
	defaultSqlExtension = "sql"

	migrateFileSuffix                = "migrate"
	rollbackFileSuffix               = "rollback"
	defaultMigrateFileFullExtension  = ".migrate.sql"
	defaultRollbackFileFullExtension = ".rollback.sql"

	timestampBasedKeyFormat = `^\d{9,11}(_\w+)?$`
	datetimeBasedKeyFormat  = `^\d{14}(_\w+)?$`
	anyBasedKeyFormat       = `^\d{9,14}(_\w+)?$`

	fileStub = dependsDirective + "\n"
)

// LocalFileSource reads migrations from pairs of .migrate.sql and .rollback.sql
// files, a migrate file may declare its dependencies with a "-- depends: a, b" line
type LocalFileSource struct {
	folder    string
	lg        logger.Logger
	keyRegexp *regexp.Regexp
}

var _ Source = (*LocalFileSource)(nil)

func NewLocalFSSource(folder string, lg logger.Logger, vf migration.VersionFormat) (*LocalFileSource, error) {
	var keyFormat string
	switch vf {
	case migration.TimestampFormat:
		keyFormat = timestampBasedKeyFormat
	case migration.DatetimeFormat:
		keyFormat = datetimeBasedKeyFormat
	default:
		keyFormat = anyBasedKeyFormat
	}

	keyRegexp, err := regexp.Compile(keyFormat)
	if err != nil {
		return nil, err
	}

	return &LocalFileSource{
		folder:    folder,
		lg:        lg,
		keyRegexp: keyRegexp,
	}, nil
}

func (lfs *LocalFileSource) All(ctx context.Context) ([]migration.Definition, error) {
	keys, err := lfs.keys()
	if err != nil {
		return nil, err
	}

	result := make([]migration.Definition, len(keys))
	g, _ := errgroup.WithContext(ctx)

	for i := range keys {
		i := i
		g.Go(func() error {
			m, err := lfs.readOne(keys[i])
			if err != nil {
				return err
			}

			result[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		lfs.lg.Error(err)
		return nil, err
	}

	return result, nil
}

func (lfs *LocalFileSource) List(_ context.Context) ([]string, error) {
	return lfs.keys()
}

func (lfs *LocalFileSource) Get(_ context.Context, identifier string) (migration.Definition, error) {
	keys, err := lfs.keys()
	if err != nil {
		return nil, err
	}

	if !migration.InStrings(identifier, keys) {
		return nil, errors.Wrapf(migration.ErrNotFound, "[%s] not found in folder %s", identifier, lfs.folder)
	}

	return lfs.readOne(identifier)
}

func (lfs *LocalFileSource) Has(_ context.Context, identifier string) (bool, error) {
	keys, err := lfs.keys()
	if err != nil {
		return false, err
	}

	return migration.InStrings(identifier, keys), nil
}

func (lfs *LocalFileSource) IsValid() bool {
	info, err := os.Stat(lfs.folder)
	if os.IsNotExist(err) || err != nil {
		return false
	}

	return info.IsDir()
}

func (lfs *LocalFileSource) AlreadyExists(version, name string) bool {
	key := migration.CreateKeyFromVersionAndName(version, name)
	filename := filepath.Join(lfs.folder, key+defaultMigrateFileFullExtension)
	info, err := os.Stat(filename)
	if os.IsNotExist(err) || err != nil {
		return false
	}
	return !info.IsDir()
}

// Create writes empty migration files and returns the new key
func (lfs *LocalFileSource) Create(version, name string, withRollback bool) (string, error) {
	key := migration.CreateKeyFromVersionAndName(version, name)
	if !lfs.keyRegexp.MatchString(key) {
		return "", errors.Wrapf(ErrNotAMigrationFile, "key [%s] does not match the version format", key)
	}

	migrateFilename := filepath.Join(lfs.folder, key+defaultMigrateFileFullExtension)
	if err := ioutil.WriteFile(migrateFilename, []byte(fileStub), 0644); err != nil {
		return "", errors.Wrapf(err, "could not create file [%s]", migrateFilename)
	}

	if withRollback {
		rollbackFilename := filepath.Join(lfs.folder, key+defaultRollbackFileFullExtension)
		if err := ioutil.WriteFile(rollbackFilename, nil, 0644); err != nil {
			return "", errors.Wrapf(err, "could not create file [%s]", rollbackFilename)
		}
	}

	return key, nil
}

// keys lists migration keys found in the folder in version order
func (lfs *LocalFileSource) keys() ([]string, error) {
	files, err := ioutil.ReadDir(lfs.folder)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read keys from folder %s", lfs.folder)
	}

	counts := make(map[string]int)
	var keys []string

	for i := range files {
		if files[i].IsDir() || filepath.Ext(files[i].Name()) != "."+defaultSqlExtension {
			continue
		}

		key, err := convertLocalFilePathToKey(files[i].Name())
		if err != nil {
			return nil, errors.Wrapf(err, "file %s is not a valid migration name", files[i].Name())
		}

		if !lfs.keyRegexp.MatchString(key) {
			return nil, errors.Wrapf(ErrInvalidTimestamp, "file %s", files[i].Name())
		}

		counts[key]++
		if counts[key] > 2 {
			return nil, errors.Wrapf(ErrTooManyFilesForKey, "%s", key)
		}

		if counts[key] == 1 {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

func (lfs *LocalFileSource) readOne(key string) (migration.Definition, error) {
	up := filepath.Join(lfs.folder, key+defaultMigrateFileFullExtension)
	down := filepath.Join(lfs.folder, key+defaultRollbackFileFullExtension)

	migrateContents, err := ioutil.ReadFile(up)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(migration.ErrBadDefinition, "[%s] has no migrate file", key)
		}
		return nil, errors.Wrapf(err, "could not read %s", up)
	}

	rollbackContents, err := ioutil.ReadFile(down)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "could not read %s", down)
	}

	requires, migrate, err := parseScript(string(migrateContents))
	if err != nil {
		return nil, errors.Wrapf(migration.ErrBadDefinition, "[%s] migrate file: %s", key, err.Error())
	}

	_, rollback, err := parseScript(string(rollbackContents))
	if err != nil {
		return nil, errors.Wrapf(migration.ErrBadDefinition, "[%s] rollback file: %s", key, err.Error())
	}

	lfs.lg.Debugf("read migration [%s] requiring %v", key, requires)

	return &migration.SQL{
		ID:       key,
		Requires: requires,
		Migrate:  migrate,
		Rollback: rollback,
	}, nil
}

func convertLocalFilePathToKey(path string) (string, error) {
	base := filepath.Base(path)
	segments := strings.Split(base, ".")

	if len(segments) != 3 {
		return "", ErrNotAMigrationFile
	}

	if segments[2] != defaultSqlExtension || !(segments[1] == migrateFileSuffix || segments[1] == rollbackFileSuffix) {
		return "", ErrNotAMigrationFile
	}

	return segments[0], nil
}
