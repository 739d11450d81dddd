package postgres

import (
	"context"

	"github.com/denismitr/bakery/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = 99887766

type Options struct {
	database.CommonOptions
	LockKey int
	NoLock  bool
}

// Locker holds a session level advisory lock
type Locker struct {
	lockKey int
	noLock  bool
}

var _ database.SessionLocker = (*Locker)(nil)

func NewLocker(lockKey int, noLock bool) *Locker {
	if lockKey == 0 {
		lockKey = DefaultLockKey
	}

	return &Locker{lockKey: lockKey, noLock: noLock}
}

func (l *Locker) Lock(ctx context.Context, ex database.Executor) error {
	if l.noLock {
		return nil
	}

	if _, err := ex.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not obtain [%d] exclusive Postgres advisory lock", l.lockKey)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, ex database.Executor) error {
	if l.noLock {
		return nil
	}

	if _, err := ex.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%d] exclusive Postgres advisory lock", l.lockKey)
	}

	return nil
}
