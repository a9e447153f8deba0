// Package repository persists the progression time series.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/xptrack/internal/domain/model"
)

// Supported store drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Store provides read/append access to the history series.
type Store interface {
	// Load returns every stored entry ordered by ascending date.
	// An empty store yields an empty series and no error.
	Load(ctx context.Context) (model.Series, error)

	// Append stores a new entry. Returns ErrDuplicateDate if the date exists.
	Append(ctx context.Context, entry model.Entry) error

	// Latest returns the most recent entry. Returns ErrNotFound if empty.
	Latest(ctx context.Context) (model.Entry, error)

	// Close releases resources held by the store.
	Close() error
}

// Settings selects and configures a Store implementation.
type Settings struct {
	Driver      string
	HistoryPath string
	LatestPath  string
	SQLitePath  string
}

// Open creates the store selected by settings.Driver.
func Open(ctx context.Context, settings Settings) (Store, error) {
	switch settings.Driver {
	case "", DriverJSON:
		s, err := NewJSONStore(settings.HistoryPath, WithLatestPath(settings.LatestPath))
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, settings.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, settings.Driver)
	}
}
