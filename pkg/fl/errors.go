package fl

import "errors"

var (
	ErrEmptyRound        = errors.New("no updates provided for aggregation")
	ErrOverflow          = errors.New("sample count overflow during aggregation")
	ErrDimensionMismatch = errors.New("parameter dimensionality mismatch")
	ErrMalformedUpdate   = errors.New("malformed model update")
	ErrOutOfRound        = errors.New("update does not belong to the current round")
)
