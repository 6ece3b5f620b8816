// Package storage defines the errors shared by storage implementations and
// their callers.
package storage

import "errors"

var (
	// ErrUserNotFound is returned when a user lookup matches no row.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrDuplicateFingerprint is returned when a media insert with
	// is_original set loses the uniqueness race on the content fingerprint.
	// Callers retry the insert as a non-original copy.
	ErrDuplicateFingerprint = errors.New("duplicate content fingerprint")
)
