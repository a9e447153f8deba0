// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar-day key format used by the history store.
const DateLayout = "2006-01-02"

var validate = validator.New()

// Snapshot is one day's raw observation of the tracked character.
// Level and experience are taken as reported upstream and are not cross-checked.
type Snapshot struct {
	Rank       int64 `json:"rank" validate:"gte=1"`       // position on the highscore list, lower is better
	Level      int64 `json:"level" validate:"gte=1"`      // reported level
	Experience int64 `json:"experience" validate:"gte=0"` // cumulative experience
}

// Validate checks the snapshot against its domain constraints.
func (s Snapshot) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, describe(err))
	}
	return nil
}

// Entry is a dated Snapshot.
type Entry struct {
	Date time.Time
	Snapshot
}

// DateKey returns the entry date formatted as YYYY-MM-DD.
func (e Entry) DateKey() string {
	return e.Date.Format(DateLayout)
}

// Series is a chronologically ordered list of entries.
type Series []Entry

// Validate reports whether the series is non-empty, strictly ascending by
// date and made of valid snapshots.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, e := range s {
		if err := e.Snapshot.Validate(); err != nil {
			return fmt.Errorf("entry %s: %w", e.DateKey(), err)
		}
		if i == 0 {
			continue
		}
		prev := s[i-1].Date
		switch {
		case e.Date.Equal(prev):
			return fmt.Errorf("%w: %s", ErrDuplicateDate, e.DateKey())
		case e.Date.Before(prev):
			return fmt.Errorf("%w: %s after %s", ErrUnorderedSeries, e.DateKey(), s[i-1].DateKey())
		}
	}
	return nil
}

// Last returns the last n entries of the series, or the whole series when
// n exceeds its length. The returned slice shares the backing array.
func (s Series) Last(n int) Series {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// ParseDate parses a YYYY-MM-DD key into a UTC midnight time.
func ParseDate(key string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(key), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}
	return d, nil
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s must be %s %s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}
