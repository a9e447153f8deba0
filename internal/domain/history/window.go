// Package history enriches a progression time series with deltas, rates and
// milestone projections.
package history

import (
	"fmt"
	"strconv"
	"strings"
)

// Window selects the most recent part of a series for a report.
// The zero value selects the whole series.
type Window struct {
	size    int
	limited bool
}

// All selects the whole series.
func All() Window { return Window{} }

// Last selects the n most recent entries.
func Last(n int) Window { return Window{size: n, limited: true} }

// Size returns the window size and whether the window is limited at all.
func (w Window) Size() (int, bool) { return w.size, w.limited }

// String renders the window as accepted by ParseWindow.
func (w Window) String() string {
	if !w.limited {
		return "all"
	}
	return strconv.Itoa(w.size)
}

func (w Window) validate() error {
	if w.limited && w.size < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, w.size)
	}
	return nil
}

// ParseWindow parses "", "all" or a positive entry count.
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return All(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	w := Last(n)
	if err := w.validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}
