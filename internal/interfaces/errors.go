package interfaces

import "errors"

var (
	// ErrAuthentication is returned when a portal session cannot be established
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotConfigured is returned by optional sources that lack credentials
	ErrNotConfigured = errors.New("source not configured")

	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrNavigation is returned when a page load fails or times out
	ErrNavigation = errors.New("navigation failed")
)
