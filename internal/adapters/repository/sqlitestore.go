package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/xptrack/internal/domain/model"
	"github.com/okian/xptrack/pkg/metrics"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	date       TEXT PRIMARY KEY,
	"rank"     INTEGER NOT NULL,
	level      INTEGER NOT NULL,
	experience INTEGER NOT NULL
)`

// SQLiteStore keeps the series in a single SQLite table keyed by date.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Load returns all rows ordered by date.
func (s *SQLiteStore) Load(ctx context.Context) (model.Series, error) {
	start := time.Now()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT date, "rank", level, experience FROM snapshots ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	series := model.Series{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		series = append(series, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	metrics.RecordRepositoryLoadLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRepositoryEntries(len(series))
	return series, nil
}

// Append inserts entry unless its date is already stored.
func (s *SQLiteStore) Append(ctx context.Context, entry model.Entry) error {
	if err := entry.Snapshot.Validate(); err != nil {
		return err
	}
	entry.Date = model.Day(entry.Date)

	start := time.Now()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO snapshots (date, "rank", level, experience) VALUES (?, ?, ?, ?)
		 ON CONFLICT(date) DO NOTHING`,
		entry.DateKey(), entry.Rank, entry.Level, entry.Experience)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateDate, entry.DateKey())
	}
	metrics.RecordRepositoryAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Latest returns the newest row.
func (s *SQLiteStore) Latest(ctx context.Context) (model.Entry, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT date, "rank", level, experience FROM snapshots ORDER BY date DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, ErrNotFound
	}
	return e, err
}

// Close releases the underlying SQLite connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.Entry, error) {
	var (
		key string
		e   model.Entry
	)
	if err := row.Scan(&key, &e.Rank, &e.Level, &e.Experience); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Entry{}, err
		}
		return model.Entry{}, fmt.Errorf("scan history row: %w", err)
	}
	date, err := model.ParseDate(key)
	if err != nil {
		return model.Entry{}, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	e.Date = date
	return e, nil
}
