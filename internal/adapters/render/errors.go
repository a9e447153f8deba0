package render

import "errors"

// ErrMarkersNotFound is returned when a README lacks the auto-updated section markers.
var ErrMarkersNotFound = errors.New("auto-updated section markers not found")
