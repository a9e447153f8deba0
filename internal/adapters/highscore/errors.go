package highscore

import "errors"

var (
	// ErrCharacterNotFound is returned when the character is on none of the scanned pages.
	ErrCharacterNotFound = errors.New("character not found on highscore list")
	// ErrStaleSnapshot is returned when page 1 matches the previous run's copy.
	ErrStaleSnapshot = errors.New("highscore data unchanged since last snapshot")
	// ErrUpstream wraps transport, status and decoding failures of the highscore API.
	ErrUpstream = errors.New("highscore upstream failure")
)
