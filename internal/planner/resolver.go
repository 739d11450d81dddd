package planner

import (
	"context"
	"strings"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/source"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

// Resolver works out which migrations are pending, installed, available and stale
type Resolver struct {
	locator source.Locator
	repo    database.Repository
}

func NewResolver(locator source.Locator, repo database.Repository) *Resolver {
	return &Resolver{locator: locator, repo: repo}
}

func (r *Resolver) Available(ctx context.Context) ([]string, error) {
	return r.locator.List(ctx)
}

func (r *Resolver) Installed(ctx context.Context) ([]string, error) {
	return r.repo.List(ctx, database.ReadFilter{Sort: database.ASC})
}

// Stale migrations are installed but no longer available
func (r *Resolver) Stale(ctx context.Context) ([]string, error) {
	installed, err := r.Installed(ctx)
	if err != nil {
		return nil, err
	}

	available, err := r.Available(ctx)
	if err != nil {
		return nil, err
	}

	return difference(installed, available), nil
}

// Pending returns migrations to apply, every migration preceded by
// its not yet installed dependencies
func (r *Resolver) Pending(ctx context.Context) ([]string, error) {
	installed, err := r.Installed(ctx)
	if err != nil {
		return nil, err
	}

	definitions, err := r.definitions(ctx)
	if err != nil {
		return nil, err
	}

	g := &graph{
		definitions: definitions.byID,
		installed:   toSet(installed),
		visiting:    make(map[string]bool),
		done:        make(map[string]bool),
		result:      []string{},
	}

	for _, candidate := range difference(definitions.order, installed) {
		if err := g.expand(candidate, nil); err != nil {
			return nil, err
		}
	}

	return g.result, nil
}

type definitionSet struct {
	order []string
	byID  map[string]migration.Definition
}

func (r *Resolver) definitions(ctx context.Context) (*definitionSet, error) {
	all, err := r.locator.All(ctx)
	if err != nil {
		return nil, err
	}

	set := &definitionSet{
		order: make([]string, 0, len(all)),
		byID:  make(map[string]migration.Definition, len(all)),
	}

	for _, d := range all {
		set.order = append(set.order, d.Identifier())
		set.byID[d.Identifier()] = d
	}

	return set, nil
}

// graph is a depth first walk over declared dependencies
type graph struct {
	definitions map[string]migration.Definition
	installed   map[string]bool
	visiting    map[string]bool
	done        map[string]bool
	result      []string
}

func (g *graph) expand(identifier string, path []string) error {
	if g.done[identifier] {
		return nil
	}

	path = append(path, identifier)
	if g.visiting[identifier] {
		return errors.Wrapf(migration.ErrCyclicDependency, "%s", strings.Join(path, " -> "))
	}

	g.visiting[identifier] = true

	for _, dep := range migration.DependenciesOf(g.definitions[identifier]) {
		if g.installed[dep] {
			continue
		}

		if _, ok := g.definitions[dep]; !ok {
			return errors.Wrapf(
				migration.ErrDependencyNotMet,
				"[%s] depends on [%s] which is neither installed nor available",
				identifier, dep,
			)
		}

		if err := g.expand(dep, path); err != nil {
			return err
		}
	}

	g.visiting[identifier] = false
	g.done[identifier] = true
	g.result = append(g.result, identifier)

	return nil
}

func difference(a, b []string) []string {
	exclude := toSet(b)
	result := []string{}
	for _, s := range a {
		if !exclude[s] {
			result = append(result, s)
		}
	}
	return result
}

func toSet(ss []string) map[string]bool {
	result := make(map[string]bool, len(ss))
	for _, s := range ss {
		result[s] = true
	}
	return result
}
