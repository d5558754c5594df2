// Package common defines shared constants and sentinel errors used across
// the AccountMap server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Upstream (AI provider) errors.
	ErrUpstreamQuota = errors.New("upstream quota exhausted")
	ErrUpstream      = errors.New("upstream error")
	ErrAIDisabled    = errors.New("ai analysis is disabled")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
