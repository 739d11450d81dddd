package source

import (
	"context"

	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

type entry struct {
	identifier string
	factory    migration.Factory
}

// InMemorySource is a registry of migration factories kept in registration order
type InMemorySource struct {
	entries []entry
	index   map[string]int
}

var _ Locator = (*InMemorySource)(nil)

func NewInMemorySource() *InMemorySource {
	return &InMemorySource{index: make(map[string]int)}
}

// Register adds a factory under identifier
func (s *InMemorySource) Register(identifier string, f migration.Factory) error {
	if _, ok := s.index[identifier]; ok {
		return errors.Wrapf(ErrDuplicateIdentifier, "[%s]", identifier)
	}

	s.index[identifier] = len(s.entries)
	s.entries = append(s.entries, entry{identifier: identifier, factory: f})

	return nil
}

// NewInMemorySourceFrom builds factories once to find out their identifiers
func NewInMemorySourceFrom(factories ...migration.Factory) (*InMemorySource, error) {
	s := NewInMemorySource()

	for i := range factories {
		d, err := resolve("", factories[i])
		if err != nil {
			return nil, errors.Wrapf(err, "factory #%d", i)
		}

		if err := s.Register(d.Identifier(), factories[i]); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *InMemorySource) All(ctx context.Context) ([]migration.Definition, error) {
	result := make([]migration.Definition, 0, len(s.entries))

	for i := range s.entries {
		d, err := resolve(s.entries[i].identifier, s.entries[i].factory)
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

func (s *InMemorySource) List(_ context.Context) ([]string, error) {
	result := make([]string, 0, len(s.entries))
	for i := range s.entries {
		result = append(result, s.entries[i].identifier)
	}
	return result, nil
}

func (s *InMemorySource) Get(_ context.Context, identifier string) (migration.Definition, error) {
	i, ok := s.index[identifier]
	if !ok {
		return nil, errors.Wrapf(migration.ErrNotFound, "[%s] is not registered", identifier)
	}

	return resolve(identifier, s.entries[i].factory)
}

func (s *InMemorySource) Has(_ context.Context, identifier string) (bool, error) {
	_, ok := s.index[identifier]
	return ok, nil
}

func resolve(identifier string, f migration.Factory) (migration.Definition, error) {
	if f == nil {
		return nil, errors.Wrapf(migration.ErrBadDefinition, "[%s] has no factory", identifier)
	}

	d, err := f()
	if err != nil {
		if errors.Is(err, migration.ErrBadDefinition) {
			return nil, errors.Wrapf(err, "[%s]", identifier)
		}

		return nil, errors.Wrapf(migration.ErrBadDefinition, "[%s] could not be resolved: %s", identifier, err.Error())
	}

	if d == nil {
		return nil, errors.Wrapf(migration.ErrBadDefinition, "[%s] resolved to nothing", identifier)
	}

	if identifier != "" && d.Identifier() != identifier {
		return nil, errors.Wrapf(
			migration.ErrBadDefinition,
			"[%s] resolved to a migration identified as [%s]",
			identifier, d.Identifier(),
		)
	}

	return d, nil
}
