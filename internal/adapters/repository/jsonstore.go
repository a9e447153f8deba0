package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/okian/xptrack/internal/domain/model"
	"github.com/okian/xptrack/pkg/metrics"
)

// Column widths of the history file. Keeping them fixed makes daily diffs
// line up in version control.
const (
	rankWidth       = 3
	levelWidth      = 4
	experienceWidth = 11
)

const defaultFileMode = 0o644

// JSONStore keeps the series in a date-keyed JSON object, one line per day:
//
//	{
//		"2024-01-01": { "rank":  10, "level":  100, "experience":     5000000 }
//	}
type JSONStore struct {
	mu         sync.Mutex
	path       string
	latestPath string
}

// NewJSONStore creates a store backed by the file at path. The file is
// created on the first append.
func NewJSONStore(path string, opts ...Option) (*JSONStore, error) {
	if path == "" {
		return nil, errors.New("history path is required")
	}
	s := &JSONStore{path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load reads the whole history file.
func (s *JSONStore) Load(_ context.Context) (model.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	series, err := s.read()
	if err != nil {
		return nil, err
	}
	metrics.RecordRepositoryLoadLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRepositoryEntries(len(series))
	return series, nil
}

// Append adds entry to the history file and refreshes the latest file.
func (s *JSONStore) Append(_ context.Context, entry model.Entry) error {
	if err := entry.Snapshot.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	series, err := s.read()
	if err != nil {
		return err
	}
	entry.Date = model.Day(entry.Date)
	for _, e := range series {
		if e.Date.Equal(entry.Date) {
			return fmt.Errorf("%w: %s", ErrDuplicateDate, entry.DateKey())
		}
	}
	series = append(series, entry)
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	if err := s.writeFile(s.path, encodeHistory(series)); err != nil {
		return err
	}
	if s.latestPath != "" {
		latest, err := encodeLatest(series[len(series)-1])
		if err != nil {
			return err
		}
		if err := s.writeFile(s.latestPath, latest); err != nil {
			return err
		}
	}

	metrics.RecordRepositoryAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRepositoryEntries(len(series))
	return nil
}

// Latest returns the newest entry.
func (s *JSONStore) Latest(ctx context.Context) (model.Entry, error) {
	series, err := s.Load(ctx)
	if err != nil {
		return model.Entry{}, err
	}
	if len(series) == 0 {
		return model.Entry{}, ErrNotFound
	}
	return series[len(series)-1], nil
}

// Close is a no-op; the file is opened per operation.
func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) read() (model.Series, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Series{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.Series{}, nil
	}
	return decodeHistory(raw)
}

// writeFile replaces path atomically via a temp file in the same directory.
func (s *JSONStore) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), defaultFileMode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func decodeHistory(raw []byte) (model.Series, error) {
	var byDate map[string]model.Snapshot
	if err := json.Unmarshal(raw, &byDate); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	series := make(model.Series, 0, len(byDate))
	for key, snap := range byDate {
		date, err := model.ParseDate(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
		}
		series = append(series, model.Entry{Date: date, Snapshot: snap})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

func encodeHistory(series model.Series) []byte {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range series {
		fmt.Fprintf(&buf, "\t%q: { \"rank\": %*d, \"level\": %*d, \"experience\": %*d }",
			e.DateKey(), rankWidth, e.Rank, levelWidth, e.Level, experienceWidth, e.Experience)
		if i < len(series)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

type latestEntry struct {
	Date       string `json:"date"`
	Rank       int64  `json:"rank"`
	Level      int64  `json:"level"`
	Experience int64  `json:"experience"`
}

func encodeLatest(e model.Entry) ([]byte, error) {
	raw, err := json.MarshalIndent(latestEntry{
		Date:       e.DateKey(),
		Rank:       e.Rank,
		Level:      e.Level,
		Experience: e.Experience,
	}, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("encode latest: %w", err)
	}
	return append(raw, '\n'), nil
}
