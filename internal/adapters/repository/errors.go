package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrNotFound      = errors.New("history is empty")
	ErrDuplicateDate = errors.New("history already contains an entry for this date")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrCorruptStore  = errors.New("history store is corrupt")
)
