package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrLoad indicates a document could not be fetched or parsed.
	// Fatal to the view that requested it.
	ErrLoad = errors.New("document load failed")

	// ErrRender indicates a single page could not be rendered.
	// Recoverable: the last good page stays visible.
	ErrRender = errors.New("page render failed")

	// ErrValidation indicates a malformed annotation draft.
	// Raised locally, never reaches the network.
	ErrValidation = errors.New("invalid annotation")

	// ErrPersist indicates a create or delete failed remotely
	ErrPersist = errors.New("annotation persistence failed")

	// ErrPageOutOfRange indicates a page number outside [1, pageCount]
	ErrPageOutOfRange = errors.New("page out of range")

	// ErrStaleRender indicates a render result was superseded by a newer request
	ErrStaleRender = errors.New("render superseded")

	// ErrViewClosed indicates the view was closed while an operation was pending
	ErrViewClosed = errors.New("view closed")

	// ErrSubmissionInFlight indicates a submit was attempted while one is pending
	ErrSubmissionInFlight = errors.New("submission already in progress")

	// ErrInvalidState indicates an action not permitted in the current composer state
	ErrInvalidState = errors.New("invalid state transition")
)
