package table

import "errors"

// Table errors.
var (
	ErrColumnNotFound    = errors.New("column not found")
	ErrDuplicateColumn   = errors.New("duplicate column name")
	ErrLengthMismatch    = errors.New("column length mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrInvalidSampleSize = errors.New("invalid sample size")
)
