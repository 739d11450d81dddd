package database

import (
	"context"
	"testing"

	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinBatch(t *testing.T) {
	tt := []struct {
		name  string
		last  migration.Batch
		steps int
		min   migration.Batch
	}{
		{name: "empty log", last: 0, steps: 1, min: 1},
		{name: "all batches", last: 5, steps: 0, min: 1},
		{name: "last batch", last: 5, steps: 1, min: 5},
		{name: "last two batches", last: 5, steps: 2, min: 4},
		{name: "more steps than batches", last: 3, steps: 10, min: 1},
		{name: "exactly all batches", last: 3, steps: 3, min: 1},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.min, MinBatch(tc.last, tc.steps))
		})
	}
}

func TestPretend(t *testing.T) {
	t.Run("statements are recorded in order", func(t *testing.T) {
		queries, err := Pretend(context.Background(), func(s migration.Schema) error {
			if err := s.Exec(context.Background(), "  CREATE TABLE foo (id int)\n"); err != nil {
				return err
			}
			return s.Exec(context.Background(), "INSERT INTO foo (id) VALUES (?)", 1)
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"CREATE TABLE foo (id int)", "INSERT INTO foo (id) VALUES (?) [1]"}, queries)
	})

	t.Run("nothing recorded", func(t *testing.T) {
		queries, err := Pretend(context.Background(), func(s migration.Schema) error {
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, []string{}, queries)
	})

	t.Run("callback error", func(t *testing.T) {
		_, err := Pretend(context.Background(), func(s migration.Schema) error {
			return errors.New("boom")
		})

		assert.EqualError(t, err, "boom")
	})
}
