package db

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFingerprint is returned by InsertCanonical when another
	// writer created the same fingerprint first.
	ErrDuplicateFingerprint = errors.New("canonical fingerprint already exists")
	// ErrAlreadyConverted is returned when a signal already has a requisition.
	ErrAlreadyConverted = errors.New("signal already converted to requisition")
	ErrUserExists       = errors.New("desk user already exists")
)
