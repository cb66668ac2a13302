package ops

import (
	"errors"

	"github.com/akhildatla/tabular/pkg/table"
)

// Operator errors. Table-level failures are re-exported so callers can
// match every kind against this package.
var (
	ErrColumnNotFound    = table.ErrColumnNotFound
	ErrInvalidSampleSize = table.ErrInvalidSampleSize
	ErrTypeMismatch      = table.ErrTypeMismatch

	ErrInvalidJoin          = errors.New("invalid join")
	ErrAmbiguousColumn      = errors.New("ambiguous column")
	ErrDuplicateCombination = errors.New("duplicate index/column combination")
	ErrUnsortedInput        = errors.New("input not sorted on ordering key")
	ErrUnknownReducer       = errors.New("unknown reducer")
	ErrInvalidWindow        = errors.New("invalid window size")
	ErrInvalidFrequency     = errors.New("invalid resample frequency")
)
