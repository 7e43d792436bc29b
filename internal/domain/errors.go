package domain

import "errors"

var (
	// ErrInvalidSession is returned when a session id is unknown or expired.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionNotActive is returned for submissions against a pending or terminal session.
	ErrSessionNotActive = errors.New("session not active")
	// ErrMomentAlreadyAnswered is the idempotent-retry condition: the moment was
	// already resolved. Callers should treat it as success-equivalent.
	ErrMomentAlreadyAnswered = errors.New("moment already answered")
	// ErrCatalogMismatch indicates a submitted moment id does not belong to the
	// session's catalog snapshot (stale client state after a catalog change).
	ErrCatalogMismatch = errors.New("moment not in session catalog")
	// ErrNoActiveMoment is returned when an answer arrives while no moment is awaiting one.
	ErrNoActiveMoment = errors.New("no moment awaiting an answer")
	// ErrQuotaExceeded propagates the tenant resource-limit authority's refusal to start.
	ErrQuotaExceeded = errors.New("session quota exceeded")
	// ErrCatalogNotFound indicates the video has no key-moment catalog.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrSkipDisabled is returned when a user skip arrives but skipping is not permitted.
	ErrSkipDisabled = errors.New("skipping moments is disabled")
)
