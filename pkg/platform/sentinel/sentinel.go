package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Adapters and stores return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about persisted resources, not validation
// failures:
// - ErrNotFound: row does not exist in the backing store
// - ErrConflict: the requested mutation is disallowed given current state
//   (e.g. withdrawing an already-inactive consent)
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrUnavailable: backend temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
