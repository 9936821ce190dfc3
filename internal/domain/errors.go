package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entity is not found in the database.
var ErrNotFound = errors.New("entity not found")

// ConfigError is a fatal configuration problem: a missing content-source
// record or an unknown provider id. Never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

// NewConfigError creates a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError is a fatal input problem: a license that fails every
// fallback attempt, or a dataset exceeding the configured safety limits.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError creates a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ResolutionError is a fatal reference problem: a module or lesson named by
// the dataset does not exist in the content store. Under current policy it
// aborts the whole run rather than skipping the item.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string { return e.Reason }

// NewResolutionError creates a ResolutionError with a formatted reason.
func NewResolutionError(format string, args ...any) *ResolutionError {
	return &ResolutionError{Reason: fmt.Sprintf(format, args...)}
}

// TransientError is a recoverable problem, e.g. a URL reachability check that
// timed out. The pipeline downgrades these to warnings instead of aborting.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TransientError) Unwrap() error { return e.Err }

// PersistenceError is a fatal storage problem: a batch upsert or attribution
// write-back failed. Aborts remaining steps; already-applied batches stay.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
