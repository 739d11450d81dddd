package migration

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type (
	VersionFormat string

	// Batch groups the migrations applied by a single migrate run
	Batch uint

	// Record is a row of the applied migrations log
	Record struct {
		ID         uint64    `db:"id"`
		Identifier string    `db:"identifier"`
		Batch      Batch     `db:"batch"`
		MigratedAt time.Time `db:"migrated_at"`
	}

	// Schema is what a migration gets to change the database with
	Schema interface {
		Exec(ctx context.Context, query string, args ...interface{}) error
	}

	// Definition is a named unit of forward and backward schema change
	Definition interface {
		Identifier() string
		Up(ctx context.Context, s Schema) error
		Down(ctx context.Context, s Schema) error
	}

	// Dependent is implemented by definitions that require other
	// migrations to be installed first
	Dependent interface {
		Dependencies() []string
	}

	ClockFunc func() time.Time
	Factory   func() (Definition, error)
	SchemaFunc func(ctx context.Context, s Schema) error
)

const (
	TimestampFormat VersionFormat = "timestamp"
	DatetimeFormat  VersionFormat = "datetime"
)

// DependenciesOf returns declared dependencies of d, an empty slice
// when d does not declare any
func DependenciesOf(d Definition) []string {
	dep, ok := d.(Dependent)
	if !ok {
		return []string{}
	}

	deps := dep.Dependencies()
	if deps == nil {
		return []string{}
	}

	return deps
}

// SQL migration consists of plain migrate and rollback statements
type SQL struct {
	ID       string
	Requires []string
	Migrate  []string
	Rollback []string
}

var _ Definition = (*SQL)(nil)
var _ Dependent = (*SQL)(nil)

func (m *SQL) Identifier() string {
	return m.ID
}

func (m *SQL) Dependencies() []string {
	return m.Requires
}

func (m *SQL) Up(ctx context.Context, s Schema) error {
	return execAll(ctx, s, m.Migrate)
}

func (m *SQL) Down(ctx context.Context, s Schema) error {
	return execAll(ctx, s, m.Rollback)
}

func (m *SQL) MigrateScripts() string {
	return joinScripts(m.Migrate)
}

func (m *SQL) RollbackScripts() string {
	return joinScripts(m.Rollback)
}

// Func migration runs arbitrary Go code against the schema
type Func struct {
	ID       string
	Requires []string
	UpFn     SchemaFunc
	DownFn   SchemaFunc
}

var _ Definition = (*Func)(nil)
var _ Dependent = (*Func)(nil)

func (m *Func) Identifier() string {
	return m.ID
}

func (m *Func) Dependencies() []string {
	return m.Requires
}

func (m *Func) Up(ctx context.Context, s Schema) error {
	if m.UpFn == nil {
		return nil
	}

	return m.UpFn(ctx, s)
}

func (m *Func) Down(ctx context.Context, s Schema) error {
	if m.DownFn == nil {
		return nil
	}

	return m.DownFn(ctx, s)
}

// New creates a factory of an SQL migration
func New(identifier string, migrate, rollback []string, requires ...string) Factory {
	return func() (Definition, error) {
		if strings.TrimSpace(identifier) == "" {
			return nil, errors.Wrap(ErrBadDefinition, "migration identifier is empty")
		}

		return &SQL{
			ID:       identifier,
			Requires: requires,
			Migrate:  migrate,
			Rollback: rollback,
		}, nil
	}
}

// NewFunc creates a factory of a Go func migration
func NewFunc(identifier string, up, down SchemaFunc, requires ...string) Factory {
	return func() (Definition, error) {
		if strings.TrimSpace(identifier) == "" {
			return nil, errors.Wrap(ErrBadDefinition, "migration identifier is empty")
		}

		return &Func{
			ID:       identifier,
			Requires: requires,
			UpFn:     up,
			DownFn:   down,
		}, nil
	}
}

func execAll(ctx context.Context, s Schema, statements []string) error {
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		if err := s.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func joinScripts(scripts []string) string {
	var ms bytes.Buffer

	for i := range scripts {
		ms.WriteString(scripts[i])

		if !strings.HasSuffix(scripts[i], ";") {
			ms.WriteString(";")
		}

		if i < len(scripts)-1 {
			ms.WriteString("\n")
		}
	}

	return ms.String()
}

type Records []Record

func (r Records) Identifiers() []string {
	result := make([]string, 0, len(r))
	for i := range r {
		result = append(result, r[i].Identifier)
	}
	return result
}

func (r Records) Len() int {
	return len(r)
}

func (r Records) Less(i, j int) bool {
	return r[i].ID < r[j].ID
}

func (r Records) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

func CreateKeyFromVersionAndName(version, name string) string {
	var result bytes.Buffer
	result.WriteString(version)
	result.WriteString("_")
	result.WriteString(strings.Replace(strings.ToLower(strings.TrimSpace(name)), " ", "_", -1))
	return result.String()
}

// GenerateVersion produces a version prefix for a new migration key
func GenerateVersion(cf ClockFunc, vf VersionFormat) string {
	if vf == TimestampFormat {
		return strconv.Itoa(int(cf().Unix()))
	}

	v := cf().Format("2006-01-02 15:04:05")
	v = strings.ReplaceAll(v, "-", "")
	v = strings.ReplaceAll(v, ":", "")
	v = strings.ReplaceAll(v, " ", "")
	return v
}

func InStrings(s string, ss []string) bool {
	for i := range ss {
		if ss[i] == s {
			return true
		}
	}

	return false
}
