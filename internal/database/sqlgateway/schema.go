package sqlgateway

import (
	"context"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/logger"
	"github.com/pkg/errors"
)

type schema struct {
	ex database.Executor
	lg logger.Logger
}

func (s *schema) Exec(ctx context.Context, query string, args ...interface{}) error {
	s.lg.SQL(query, args...)

	if _, err := s.ex.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "could not execute [%s]", query)
	}

	return nil
}

// lazySchema executes outside of a transaction on the gateway session
type lazySchema struct {
	g *Gateway
}

func (s *lazySchema) Exec(ctx context.Context, query string, args ...interface{}) error {
	conn, err := s.g.connector.Connect(ctx)
	if err != nil {
		return err
	}

	return (&schema{ex: conn, lg: s.g.lg}).Exec(ctx, query, args...)
}
