package sqlgateway

import (
	"context"
	"time"

	"github.com/denismitr/bakery/internal/retry"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 100
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

// SQLConnector hands out a single session, session level locks depend on it
type SQLConnector interface {
	Connect(ctx context.Context) (*sqlx.Conn, error)
	Timeout() time.Duration
	Close() error
}

type RetryingConnector struct {
	options *ConnectOptions
	db      *sqlx.DB
	conn    *sqlx.Conn
}

var _ SQLConnector = (*RetryingConnector)(nil)

func (c *RetryingConnector) Timeout() time.Duration {
	return c.options.MaxTimeout
}

func MakeRetryingConnector(db *sqlx.DB, options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{db: db, options: options}
}

func (c *RetryingConnector) Connect(ctx context.Context) (*sqlx.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	if c.options.MaxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.MaxTimeout)
		defer cancel()
	}

	var conn *sqlx.Conn
	err := retry.Incremental(ctx, c.options.RetryStep, c.options.MaxAttempts, func(attempt int) error {
		var err error
		conn, err = c.db.Connx(ctx)
		if err != nil {
			return retry.Temporary(errors.Wrap(err, "could not establish DB connection"), attempt)
		}

		if err := ping(ctx, conn); err != nil {
			_ = conn.Close()
			return retry.Temporary(err, attempt)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	c.conn = conn

	return conn, nil
}

func (c *RetryingConnector) Close() error {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return errors.Wrap(err, "retrying connector could not close the connection")
		}

		c.conn = nil
	}

	return nil
}
