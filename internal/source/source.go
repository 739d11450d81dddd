package source

import (
	"context"
	"strings"
	"unicode"

	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp in migration filename")
var ErrNotAMigrationFile = errors.New("not a migration file")
var ErrTooManyFilesForKey = errors.New("too many files for single migration key")
var ErrDuplicateIdentifier = errors.New("duplicate migration identifier")

// Locator enumerates migration definitions known to the system
type Locator interface {
	All(ctx context.Context) ([]migration.Definition, error)
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, identifier string) (migration.Definition, error)
	Has(ctx context.Context, identifier string) (bool, error)
}

// Source is a locator that can also create new migrations
type Source interface {
	Locator

	IsValid() bool
	AlreadyExists(version, name string) bool
	Create(version, name string, withRollback bool) (string, error)
}

func identifiersOf(definitions []migration.Definition) []string {
	result := make([]string, 0, len(definitions))
	for i := range definitions {
		result = append(result, definitions[i].Identifier())
	}
	return result
}

func ucFirst(s string) string {
	r := []rune(s)

	if len(r) == 0 {
		return ""
	}

	f := string(unicode.ToUpper(r[0]))

	return f + string(r[1:])
}

// HumanizeKey turns a migration key into a readable name
func HumanizeKey(key string) string {
	segments := strings.SplitN(key, "_", 2)
	if len(segments) < 2 {
		return ucFirst(key)
	}

	return ucFirst(strings.Replace(segments[1], "_", " ", -1))
}
