package migration

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("migration not found")
	ErrBadDefinition     = errors.New("bad migration definition")
	ErrDependencyNotMet  = errors.New("migration dependency not met")
	ErrCyclicDependency  = errors.New("cyclic migration dependency")
	ErrRollbackBlocked   = errors.New("migration rollback blocked")
	ErrAlreadyLogged     = errors.New("migration already logged")
	ErrNothingToMigrate  = errors.New("nothing to migrate")
	ErrNothingToRollback = errors.New("nothing to rollback")
)

const (
	OperationMigrate  = "migrate"
	OperationRollback = "rollback"
)

// ExecutionError is returned when a migration's own up or down operation fails
type ExecutionError struct {
	Identifier string
	Operation  string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("could not %s [%s]: %s", e.Operation, e.Identifier, e.Err.Error())
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
