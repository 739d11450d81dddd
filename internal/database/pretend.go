package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/denismitr/bakery/migration"
)

// Recorder is a schema that only remembers the statements it was given
type Recorder struct {
	queries []string
}

var _ migration.Schema = (*Recorder)(nil)

func (r *Recorder) Exec(_ context.Context, query string, args ...interface{}) error {
	q := strings.TrimSpace(query)
	if len(args) > 0 {
		q += fmt.Sprintf(" %v", args)
	}

	r.queries = append(r.queries, q)
	return nil
}

func (r *Recorder) Queries() []string {
	if r.queries == nil {
		return []string{}
	}

	return r.queries
}

// Pretend runs fn against a fresh recorder
func Pretend(_ context.Context, fn func(s migration.Schema) error) ([]string, error) {
	r := &Recorder{}
	if err := fn(r); err != nil {
		return nil, err
	}

	return r.Queries(), nil
}
