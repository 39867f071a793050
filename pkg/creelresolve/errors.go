package creelresolve

import (
	"errors"
	"fmt"

	"github.com/mmilitzer/creel/pkg/creelmodule"
)

// UnresolvedModuleError names a module specification no configured
// repository could satisfy, or one whose repository returned malformed data
// for it.
type UnresolvedModuleError struct {
	Specification creelmodule.Specification
	Cause         error // nil if simply no repository had a match
}

func (e *UnresolvedModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unresolved module %s: %v", e.Specification, e.Cause)
	}
	return fmt.Sprintf("unresolved module %s: no repository had a match", e.Specification)
}

func (e *UnresolvedModuleError) Unwrap() error { return e.Cause }

// ErrCancelled is creel's Cancelled error kind: a clean abort
// where no graph mutations from the in-flight round are applied and no
// state is persisted.
var ErrCancelled = errors.New("creelresolve: identification cancelled")
