// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels shared by the repository, service and handler layers.
var (
	// ErrValidation indicates bad or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized indicates the caller exists but does not own the entity.
	// Handlers collapse this to the same response as ErrNotFound for records,
	// so the two are indistinguishable to an external caller.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrDependency indicates an external collaborator (blob store, database)
	// failed or timed out. Safe to retry.
	ErrDependency = errors.New("dependency unavailable")

	// ErrConflict indicates a uniqueness violation (e.g. a share token collision).
	ErrConflict = errors.New("conflict")
)
