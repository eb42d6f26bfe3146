package database

import "errors"

var (
	// ErrNotFound is returned when a subject does not exist
	ErrNotFound = errors.New("subject not found")

	// ErrDuplicateSubject is returned when a subject ID is already registered
	ErrDuplicateSubject = errors.New("subject ID already exists")
)
