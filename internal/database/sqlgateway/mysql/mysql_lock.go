package mysql

import (
	"context"
	"database/sql"

	"github.com/denismitr/bakery/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = "bakery_migrations"
const DefaultLockSeconds = 3

var ErrLockNotAcquired = errors.New("mysql lock was not acquired")

type Options struct {
	database.CommonOptions
	LockKey string
	LockFor int // seconds
	NoLock  bool
}

type Locker struct {
	lockKey string
	lockFor int
	noLock  bool
}

var _ database.SessionLocker = (*Locker)(nil)

func NewLocker(lockKey string, lockFor int, noLock bool) *Locker {
	if lockKey == "" {
		lockKey = DefaultLockKey
	}

	return &Locker{lockKey: lockKey, lockFor: lockFor, noLock: noLock}
}

func (l *Locker) Lock(ctx context.Context, ex database.Executor) error {
	if l.noLock {
		return nil
	}

	var acquired sql.NullInt64
	if err := ex.QueryRowxContext(ctx, "SELECT GET_LOCK(?, ?)", l.lockKey, l.lockFor).Scan(&acquired); err != nil {
		return errors.Wrapf(err, "could not obtain [%s] exclusive MySQL DB lock for [%d] seconds", l.lockKey, l.lockFor)
	}

	if !acquired.Valid || acquired.Int64 != 1 {
		return errors.Wrapf(ErrLockNotAcquired, "[%s] is held by another session for more than [%d] seconds", l.lockKey, l.lockFor)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, ex database.Executor) error {
	if l.noLock {
		return nil
	}

	if _, err := ex.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%s] exclusive MySQL DB lock", l.lockKey)
	}

	return nil
}
