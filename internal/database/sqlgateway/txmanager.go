package sqlgateway

import (
	"context"
	"database/sql"
	"strings"

	"github.com/denismitr/bakery/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type TxConfig struct {
	Iso      sql.IsolationLevel
	ReadOnly bool
}

type txCallback func(ctx context.Context, tx *sqlx.Tx) error

// isolate runs cb in a transaction on conn, committing when cb succeeds
func isolate(ctx context.Context, conn *sqlx.Conn, cb txCallback, txCfg TxConfig) error {
	txx, err := conn.BeginTxx(ctx, &sql.TxOptions{ReadOnly: txCfg.ReadOnly, Isolation: txCfg.Iso})
	if err != nil {
		return errors.Wrapf(
			err,
			"could not start transaction. read-only: %v, isolation: %d",
			txCfg.ReadOnly, txCfg.Iso,
		)
	}

	if err := cb(ctx, txx); err != nil {
		if isDeadlock(err) {
			err = errors.Wrapf(
				database.ErrTxDeadlock,
				"read-only: %v, isolation: %d, on callback: %s",
				txCfg.ReadOnly, txCfg.Iso, err.Error(),
			)
		}

		if rbErr := txx.Rollback(); rbErr != nil {
			return errors.Wrap(err, " : ROLLBACK : "+rbErr.Error())
		}

		return err
	}

	if err := txx.Commit(); err != nil {
		if isDeadlock(err) {
			return errors.Wrapf(
				database.ErrTxDeadlock,
				"read-only: %v, isolation: %d, on commit: %s",
				txCfg.ReadOnly, txCfg.Iso, err.Error(),
			)
		}

		return errors.Wrapf(
			err,
			"could not commit transaction. read-only: %v, isolation: %d",
			txCfg.ReadOnly, txCfg.Iso,
		)
	}

	return nil
}

func isDeadlock(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "deadlock")
}
