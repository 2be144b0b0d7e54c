package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath indicates a path that does not exist or escapes the directory it must stay within
	ErrInvalidPath = errors.New("invalid path")
	// ErrDuplicateChunkAssignment indicates a module specifier claimed by more than one chunk group
	ErrDuplicateChunkAssignment = errors.New("duplicate chunk assignment")
	// ErrSchema indicates malformed configuration input (missing field, wrong type, unknown key)
	ErrSchema = errors.New("invalid configuration schema")
)

// DuplicateChunkAssignmentError reports the specifier and the two groups that claim it.
type DuplicateChunkAssignmentError struct {
	Module string
	First  string
	Second string
}

func (e *DuplicateChunkAssignmentError) Error() string {
	return fmt.Sprintf("%s: module %q is assigned to chunk groups %q and %q",
		ErrDuplicateChunkAssignment, e.Module, e.First, e.Second)
}

func (e *DuplicateChunkAssignmentError) Unwrap() error {
	return ErrDuplicateChunkAssignment
}

func schemaErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func pathErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPath, fmt.Sprintf(format, args...))
}
