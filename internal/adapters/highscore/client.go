// Package highscore fetches a character's daily snapshot from the public
// highscore API.
package highscore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okian/xptrack/internal/domain/model"
	"github.com/okian/xptrack/pkg/logger"
	"github.com/okian/xptrack/pkg/metrics"
)

const (
	// DefaultBaseURL is the public tibiadata endpoint.
	DefaultBaseURL = "https://api.tibiadata.com"
	// DefaultMaxPages bounds the page walk.
	DefaultMaxPages = 20

	defaultTimeout = 30 * time.Second
)

// Client walks the experience highscores of one world and vocation looking
// for a single character.
type Client struct {
	world     string
	vocation  string
	character string

	baseURL      string
	httpClient   *http.Client
	maxPages     int
	snapshotPath string
	logger       logger.Logger

	mu      sync.Mutex
	pending []byte
}

type highscoreRow struct {
	Rank  int64  `json:"rank"`
	Name  string `json:"name"`
	Level int64  `json:"level"`
	Value int64  `json:"value"`
}

type pageResponse struct {
	Highscores struct {
		List []highscoreRow `json:"highscore_list"`
	} `json:"highscores"`
}

// New creates a client for character on the given world and vocation list.
func New(world, vocation, character string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(world) == "" || strings.TrimSpace(vocation) == "" || strings.TrimSpace(character) == "" {
		return nil, errors.New("world, vocation and character are required")
	}
	c := &Client{
		world:      world,
		vocation:   vocation,
		character:  character,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxPages:   DefaultMaxPages,
		logger:     logger.Get().Named("highscore"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns today's rank, level and experience for the character.
//
// When a snapshot path is configured, page 1 is compared with the copy saved
// by the last Commit; identical data yields ErrStaleSnapshot. The new page 1
// is held until Commit, so a fetch whose result was never stored can be
// retried the same day.
func (c *Client) Fetch(ctx context.Context) (model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil

	var first []byte
	for page := 1; page <= c.maxPages; page++ {
		raw, err := c.getPage(ctx, page)
		if err != nil {
			return model.Snapshot{}, err
		}

		normalized, err := normalize(raw)
		if err != nil {
			return model.Snapshot{}, err
		}
		if page == 1 && c.snapshotPath != "" {
			first = normalized
			if err := c.checkSnapshot(normalized); err != nil {
				return model.Snapshot{}, err
			}
		}

		var resp pageResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return model.Snapshot{}, fmt.Errorf("%w: decode page %d: %w", ErrUpstream, page, err)
		}
		if len(resp.Highscores.List) == 0 {
			break
		}
		for _, row := range resp.Highscores.List {
			if row.Name == c.character {
				c.logger.Debug(ctx, "character found",
					logger.Int("page", page),
					logger.Int64("rank", row.Rank),
					logger.Int64("charLevel", row.Level),
				)
				if c.snapshotPath != "" {
					c.pending = first
				}
				return model.Snapshot{Rank: row.Rank, Level: row.Level, Experience: row.Value}, nil
			}
		}
	}
	return model.Snapshot{}, fmt.Errorf("%w: %q", ErrCharacterNotFound, c.character)
}

func (c *Client) pageURL(page int) string {
	return fmt.Sprintf("%s/v4/highscores/%s/experience/%s/%d",
		c.baseURL, url.PathEscape(c.world), url.PathEscape(c.vocation), page)
}

func (c *Client) getPage(ctx context.Context, page int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(page), nil)
	if err != nil {
		return nil, fmt.Errorf("build highscore request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("highscore", "transport")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordErrorByComponent("highscore", "status")
		return nil, fmt.Errorf("%w: page %d returned %s", ErrUpstream, page, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read page %d: %w", ErrUpstream, page, err)
	}
	metrics.RecordUpstreamPage()
	return body, nil
}

// normalize drops the fields that change on every request and returns the
// page re-encoded with sorted keys.
func normalize(raw []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode page: %w", ErrUpstream, err)
	}
	if hs, ok := doc["highscores"].(map[string]any); ok {
		delete(hs, "highscore_age")
	}
	if info, ok := doc["information"].(map[string]any); ok {
		delete(info, "timestamp")
	}
	out, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return append(out, '\n'), nil
}

func (c *Client) checkSnapshot(page []byte) error {
	previous, err := os.ReadFile(c.snapshotPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("read highscore snapshot: %w", err)
	}
	if prev, err := normalize(previous); err == nil && bytes.Equal(prev, page) {
		metrics.RecordStaleSnapshot()
		return ErrStaleSnapshot
	}
	return nil
}

// Commit saves page 1 of the last successful Fetch as the reference for the
// next staleness check. It is a no-op when nothing is pending.
func (c *Client) Commit(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.snapshotPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(c.snapshotPath, c.pending, 0o644); err != nil {
		return fmt.Errorf("write highscore snapshot: %w", err)
	}
	c.pending = nil
	return nil
}
