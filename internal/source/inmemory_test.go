package source

import (
	"context"
	"testing"

	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_InMemorySourceKeepsRegistrationOrder(t *testing.T) {
	s, err := NewInMemorySourceFrom(
		migration.New("c", []string{"CREATE TABLE c (id int)"}, nil),
		migration.New("a", []string{"CREATE TABLE a (id int)"}, nil, "c"),
		migration.NewFunc("b", nil, nil),
	)
	require.NoError(t, err)

	ctx := context.Background()

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, identifiersOf(all))

	d, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, migration.DependenciesOf(d))

	has, err := s.Has(ctx, "b")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = s.Get(ctx, "x")
	assert.True(t, errors.Is(err, migration.ErrNotFound))
}

func Test_InMemorySourceRejectsDuplicates(t *testing.T) {
	_, err := NewInMemorySourceFrom(
		migration.New("a", nil, nil),
		migration.New("a", nil, nil),
	)
	assert.True(t, errors.Is(err, ErrDuplicateIdentifier))
}

func Test_InMemorySourceBadDefinitions(t *testing.T) {
	tt := []struct {
		name    string
		factory migration.Factory
	}{
		{name: "nil factory", factory: nil},
		{name: "failing factory", factory: func() (migration.Definition, error) {
			return nil, errors.New("boom")
		}},
		{name: "factory returning nothing", factory: func() (migration.Definition, error) {
			return nil, nil
		}},
		{name: "identifier mismatch", factory: migration.New("other", nil, nil)},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s := NewInMemorySource()
			require.NoError(t, s.Register("broken", tc.factory))

			has, err := s.Has(context.Background(), "broken")
			require.NoError(t, err)
			assert.True(t, has)

			_, err = s.Get(context.Background(), "broken")
			assert.True(t, errors.Is(err, migration.ErrBadDefinition))

			_, err = s.All(context.Background())
			assert.True(t, errors.Is(err, migration.ErrBadDefinition))
		})
	}
}
