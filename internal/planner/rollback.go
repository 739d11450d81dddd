package planner

import (
	"context"
	"strings"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

// RollbackPlanner decides whether installed migrations can be undone
// without breaking the migrations that depend on them
type RollbackPlanner struct {
	resolver *Resolver
}

func NewRollbackPlanner(resolver *Resolver) *RollbackPlanner {
	return &RollbackPlanner{resolver: resolver}
}

type snapshot struct {
	installed   []string
	stale       []string
	definitions map[string]migration.Definition
}

func (p *RollbackPlanner) snapshot(ctx context.Context) (*snapshot, error) {
	installed, err := p.resolver.Installed(ctx)
	if err != nil {
		return nil, err
	}

	definitions, err := p.resolver.definitions(ctx)
	if err != nil {
		return nil, err
	}

	return &snapshot{
		installed:   installed,
		stale:       difference(installed, definitions.order),
		definitions: definitions.byID,
	}, nil
}

// Validate fails with ErrRollbackBlocked when identifier cannot be rolled back,
// installed overrides the list of installed migrations checked for dependents
func (p *RollbackPlanner) Validate(ctx context.Context, identifier string, installed []string) error {
	s, err := p.snapshot(ctx)
	if err != nil {
		return err
	}

	if installed == nil {
		installed = s.installed
	}

	return s.validate(identifier, installed)
}

// CanRollback reports a blocked rollback as false, other failures are returned
func (p *RollbackPlanner) CanRollback(ctx context.Context, identifier string) (bool, error) {
	if err := p.Validate(ctx, identifier, nil); err != nil {
		if errors.Is(err, migration.ErrRollbackBlocked) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// ForRollback returns migrations of the last steps batches, most recent first
func (p *RollbackPlanner) ForRollback(ctx context.Context, steps int) ([]string, error) {
	if steps < 1 {
		steps = 1
	}

	return p.plan(ctx, database.ReadFilter{Steps: steps, Sort: database.DESC})
}

// ForReset returns every installed migration, most recent first
func (p *RollbackPlanner) ForReset(ctx context.Context) ([]string, error) {
	return p.plan(ctx, database.ReadFilter{Sort: database.DESC})
}

// ForMigration plans the rollback of a single installed migration
func (p *RollbackPlanner) ForMigration(ctx context.Context, identifier string) ([]string, error) {
	if err := p.Validate(ctx, identifier, nil); err != nil {
		return nil, err
	}

	return []string{identifier}, nil
}

// plan validates targets one by one, each against every installed migration
// except the targets already validated, so installed dependents outside
// the planned window block the rollback too
func (p *RollbackPlanner) plan(ctx context.Context, f database.ReadFilter) ([]string, error) {
	targets, err := p.resolver.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return []string{}, nil
	}

	s, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	remaining := s.installed
	for _, target := range targets {
		if err := s.validate(target, remaining); err != nil {
			return nil, err
		}

		remaining = difference(remaining, []string{target})
	}

	return targets, nil
}

func (s *snapshot) validate(identifier string, installed []string) error {
	if !migration.InStrings(identifier, s.installed) {
		return errors.Wrapf(migration.ErrRollbackBlocked, "[%s] is not installed", identifier)
	}

	if len(s.stale) > 0 {
		return errors.Wrapf(
			migration.ErrRollbackBlocked,
			"stale migrations detected: %s",
			strings.Join(s.stale, ", "),
		)
	}

	for _, m := range installed {
		if m == identifier {
			continue
		}

		deps, err := s.transitiveDependencies(m)
		if err != nil {
			return err
		}

		if deps[identifier] {
			return errors.Wrapf(
				migration.ErrRollbackBlocked,
				"[%s] cannot be rolled back since [%s] depends on it",
				identifier, m,
			)
		}
	}

	return nil
}

func (s *snapshot) transitiveDependencies(identifier string) (map[string]bool, error) {
	result := make(map[string]bool)
	visiting := make(map[string]bool)

	var walk func(id string, path []string) error
	walk = func(id string, path []string) error {
		path = append(path, id)
		if visiting[id] {
			return errors.Wrapf(migration.ErrCyclicDependency, "%s", strings.Join(path, " -> "))
		}

		d, ok := s.definitions[id]
		if !ok {
			return errors.Wrapf(migration.ErrDependencyNotMet, "[%s] is not available", id)
		}

		visiting[id] = true
		for _, dep := range migration.DependenciesOf(d) {
			if result[dep] {
				continue
			}

			if _, ok := s.definitions[dep]; !ok {
				return errors.Wrapf(migration.ErrDependencyNotMet, "dependency [%s] of [%s] is not available", dep, id)
			}

			if err := walk(dep, path); err != nil {
				return err
			}

			result[dep] = true
		}
		visiting[id] = false

		return nil
	}

	if err := walk(identifier, nil); err != nil {
		return nil, err
	}

	return result, nil
}
