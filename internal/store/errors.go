package store

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation requires a session and none was provided
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized is returned when the record exists but belongs to another user
	ErrUnauthorized = errors.New("unauthorized access to article")

	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("article not found")

	// ErrEmailTaken is returned when signing up with an email that is already registered
	ErrEmailTaken = errors.New("email is already in use")

	// ErrTokenInvalid is returned when a verification or reset token is unknown or expired
	ErrTokenInvalid = errors.New("token is invalid or expired")
)
