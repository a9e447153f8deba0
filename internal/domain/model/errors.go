package model

import "errors"

// Sentinel kinds for series validation.
var (
	ErrEmptySeries     = errors.New("empty series")
	ErrUnorderedSeries = errors.New("series not in ascending date order")
	ErrDuplicateDate   = errors.New("duplicate date in series")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
