package store

import "errors"

var (
	// ErrAccountNotFound is returned when no account has the requested id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTweetNotFound is returned when an account has no archived tweet with the requested id.
	ErrTweetNotFound = errors.New("tweet not found")
)
