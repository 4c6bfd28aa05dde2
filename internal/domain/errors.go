package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when an incoming ping or region is malformed
// (e.g. latitude out of range, non-finite coordinates, zero radius).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrState is returned when a lifecycle transition is attempted against the
// wrong trip state: a ping after the trip closed, a ping arriving too soon,
// a region leave while a trip is already open.
var ErrState = errors.New("invalid trip state")

// ErrCollaborator wraps failures of the geocoding, venue lookup, and remote
// sync services.
var ErrCollaborator = errors.New("collaborator error")

// ErrPersistence wraps failures writing to or reading from the trip store.
var ErrPersistence = errors.New("persistence error")
