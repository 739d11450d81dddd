package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

// Callable is retried for as long as it returns a temporary error
type Callable func(attempt int) error

type temporary struct {
	error
	attempt int
}

func (t *temporary) Unwrap() error {
	return t.error
}

// Temporary marks err as recoverable, so the callable gets another attempt
func Temporary(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &temporary{error: err, attempt: attempt}
}

type Backoff interface {
	Next() (time.Duration, bool)
	Current() int
}

func Start(ctx context.Context, b Backoff, cb Callable) error {
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Wrap(err, lastErr.Error())
			}
			return err
		}

		err := cb(b.Current())
		if err == nil {
			return nil
		}

		var t *temporary
		if !errors.As(err, &t) {
			return errors.Wrapf(err, "attempt %d failed", b.Current())
		}

		lastErr = t.error

		next, stop := b.Next()
		if stop {
			return errors.Wrapf(ErrTooManyAttempts, "last error: %s", lastErr.Error())
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), lastErr.Error())
		case <-time.After(next):
		}
	}
}

// Incremental retries cb up to maxAttempts times, waiting one more step
// after every failed attempt
func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Start(ctx, IncrementalBackoff(step, maxAttempts), cb)
}

type incrementalBackoff struct {
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

func (b *incrementalBackoff) Next() (time.Duration, bool) {
	b.curr++
	if b.curr > b.max {
		return 0, true
	}

	b.prev += b.step

	return b.prev, false
}

func (b *incrementalBackoff) Current() int {
	return b.curr
}

func IncrementalBackoff(step time.Duration, max int) Backoff {
	return &incrementalBackoff{
		step: step,
		max:  max,
		curr: 1,
	}
}
