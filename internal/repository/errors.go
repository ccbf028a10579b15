// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// session service to distinguish between failure scenarios without
// depending on driver-specific errors. For example, ErrNotFound covers
// any lookup miss, while ErrTokenRotated signals that a refresh token
// was concurrently revoked by another request mid-rotation.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Repositories map
// sql.ErrNoRows to this sentinel so callers never import database/sql.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by UserRepo.Create when the normalized email
// is already registered. Handlers translate this into an HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenRotated is returned by TokenRepo.Rotate when the presented token
// was already revoked by the time the conditional update ran, meaning a
// concurrent refresh won the race. The service treats this the same as a
// replayed token.
var ErrTokenRotated = errors.New("token already rotated")
