// Package service ties the history store, the highscore fetcher and the
// enrichment engine together and schedules the daily collection.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/xptrack/internal/adapters/highscore"
	"github.com/okian/xptrack/internal/adapters/render"
	"github.com/okian/xptrack/internal/adapters/repository"
	"github.com/okian/xptrack/internal/domain/formula"
	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/internal/domain/model"
	"github.com/okian/xptrack/pkg/logger"
	"github.com/okian/xptrack/pkg/metrics"
)

// Fetcher returns the character's current snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (model.Snapshot, error)
}

// Committer is implemented by fetchers that keep per-run state until the
// fetched snapshot has been stored.
type Committer interface {
	Commit(ctx context.Context) error
}

var _ Committer = (*highscore.Client)(nil)

// CollectResult describes a successful collection run.
type CollectResult struct {
	RunID string `json:"runId"`
	Date  string `json:"date"`
	model.Snapshot
}

// Service implements the API dependencies for the progression tracker.
type Service struct {
	mu        sync.RWMutex
	collectMu sync.Mutex

	// Core components
	store   repository.Store
	fetcher Fetcher
	cron    *cron.Cron

	// Configuration
	schedule       string
	readmePath     string
	recentWindow   history.Window
	granularity    int64
	collectTimeout time.Duration
	now            func() time.Time

	// State
	started        bool
	collections    int64
	lastRunID      string
	lastCollection time.Time
	lastError      string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the history store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithFetcher sets the source of daily snapshots.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithSchedule sets the cron spec of the daily collection. Empty disables it.
func WithSchedule(spec string) Option {
	return func(s *Service) {
		s.schedule = spec
	}
}

// WithReadmePath enables regenerating the README section after each collection.
func WithReadmePath(path string) Option {
	return func(s *Service) {
		s.readmePath = path
	}
}

// WithRecentWindow sets the number of days shown in the README table.
func WithRecentWindow(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.recentWindow = history.Last(days)
		}
	}
}

// WithReadmeWindow sets the window of the README table; All() shows the
// whole history.
func WithReadmeWindow(w history.Window) Option {
	return func(s *Service) {
		s.recentWindow = w
	}
}

// WithMilestoneGranularity sets the level granularity of milestone projections.
func WithMilestoneGranularity(g int64) Option {
	return func(s *Service) {
		if g > 0 {
			s.granularity = g
		}
	}
}

// WithCollectTimeout bounds a scheduled collection run.
func WithCollectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.collectTimeout = d
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		recentWindow:   history.Last(30),
		granularity:    formula.DefaultMilestoneGranularity,
		collectTimeout: 2 * time.Minute,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start schedules the daily collection. Without a schedule it only marks the
// service as started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return ErrNoStore
	}

	if s.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.schedule, s.scheduledCollect); err != nil {
			return fmt.Errorf("invalid collect schedule %q: %w", s.schedule, err)
		}
		c.Start()
		s.cron = c
		s.logger.Info(ctx, "collection scheduled", logger.String("schedule", s.schedule))
	}

	s.started = true
	s.logger.Info(ctx, "progression service started")
	return nil
}

// Stop stops the scheduler and waits for a running collection to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	wasStarted := s.started
	s.started = false
	s.mu.Unlock()

	if !wasStarted {
		return
	}
	if c != nil {
		<-c.Stop().Done()
	}
	s.logger.Info(context.Background(), "progression service stopped")
}

func (s *Service) scheduledCollect() {
	ctx, cancel := context.WithTimeout(context.Background(), s.collectTimeout)
	defer cancel()

	if _, err := s.Collect(ctx); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyCollected), errors.Is(err, highscore.ErrStaleSnapshot):
			s.logger.Warn(ctx, "scheduled collection skipped", logger.Error(err))
		default:
			s.logger.Error(ctx, "scheduled collection failed", logger.Error(err))
		}
	}
}

// Collect fetches today's snapshot and appends it to the history.
// Runs are serialized; a second run on the same day fails with ErrAlreadyCollected.
func (s *Service) Collect(ctx context.Context) (CollectResult, error) {
	if s.store == nil {
		return CollectResult{}, ErrNoStore
	}
	if s.fetcher == nil {
		return CollectResult{}, ErrNoFetcher
	}

	s.collectMu.Lock()
	defer s.collectMu.Unlock()

	runID := uuid.NewString()
	log := s.logger.Named("collect")
	start := time.Now()
	today := model.Day(s.now())

	res, err := s.collect(ctx, runID, today)
	elapsed := time.Since(start)
	metrics.RecordCollectionLatency(float64(elapsed.Microseconds()) / 1000)
	if err != nil {
		metrics.RecordCollection(collectionResult(err))
		s.recordRun(runID, time.Time{}, err)
		log.Warn(ctx, "collection failed",
			logger.String("runId", runID),
			logger.String("date", today.Format(model.DateLayout)),
			logger.Duration("elapsed", elapsed),
			logger.Error(err),
		)
		return CollectResult{}, err
	}

	metrics.RecordCollection("success")
	metrics.UpdateLastCollection(s.now().Unix())
	metrics.UpdateProgression(res.Rank, res.Level, res.Experience, formula.BaseValue(res.Level))
	s.recordRun(runID, s.now(), nil)
	log.Info(ctx, "collection stored",
		logger.String("runId", runID),
		logger.String("date", res.Date),
		logger.Int64("rank", res.Rank),
		logger.Int64("charLevel", res.Level),
		logger.Int64("experience", res.Experience),
		logger.Duration("elapsed", elapsed),
	)

	if s.readmePath != "" {
		if err := s.RenderReadme(ctx); err != nil {
			log.Error(ctx, "readme update failed", logger.String("runId", runID), logger.Error(err))
		}
	}
	return res, nil
}

func (s *Service) collect(ctx context.Context, runID string, today time.Time) (CollectResult, error) {
	latest, err := s.store.Latest(ctx)
	switch {
	case err == nil && !latest.Date.Before(today):
		return CollectResult{}, fmt.Errorf("%w: %s", ErrAlreadyCollected, latest.DateKey())
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return CollectResult{}, err
	}

	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return CollectResult{}, err
	}

	entry := model.Entry{Date: today, Snapshot: snap}
	if err := s.store.Append(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateDate) {
			return CollectResult{}, fmt.Errorf("%w: %w", ErrAlreadyCollected, err)
		}
		return CollectResult{}, err
	}
	if c, ok := s.fetcher.(Committer); ok {
		if err := c.Commit(ctx); err != nil {
			s.logger.Warn(ctx, "fetcher commit failed", logger.String("runId", runID), logger.Error(err))
		}
	}
	return CollectResult{RunID: runID, Date: entry.DateKey(), Snapshot: snap}, nil
}

func collectionResult(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyCollected):
		return "duplicate"
	case errors.Is(err, highscore.ErrStaleSnapshot):
		return "stale"
	case errors.Is(err, highscore.ErrCharacterNotFound):
		return "not_found"
	case errors.Is(err, highscore.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}

func (s *Service) recordRun(runID string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRunID = runID
	if err != nil {
		s.lastError = err.Error()
		return
	}
	s.collections++
	s.lastCollection = at
	s.lastError = ""
}

// Report loads the history and enriches the requested window.
func (s *Service) Report(ctx context.Context, window history.Window) (history.Report, error) {
	if s.store == nil {
		return history.Report{}, ErrNoStore
	}
	series, err := s.store.Load(ctx)
	if err != nil {
		return history.Report{}, err
	}

	start := time.Now()
	report, err := history.Enrich(series, window, history.WithMilestoneGranularity(s.granularity))
	if err != nil {
		return history.Report{}, err
	}
	metrics.RecordEnrichLatency(float64(time.Since(start).Microseconds()) / 1000)
	return report, nil
}

// Latest returns the newest stored entry.
func (s *Service) Latest(ctx context.Context) (model.Entry, error) {
	if s.store == nil {
		return model.Entry{}, ErrNoStore
	}
	return s.store.Latest(ctx)
}

// RenderReadme rewrites the README section with the recent window's table.
func (s *Service) RenderReadme(ctx context.Context) error {
	if s.readmePath == "" {
		return nil
	}
	report, err := s.Report(ctx, s.recentWindow)
	if err != nil {
		return err
	}
	if err := render.PatchReadmeFile(s.readmePath, render.Markdown(report)); err != nil {
		return err
	}
	s.logger.Debug(ctx, "readme updated",
		logger.String("path", s.readmePath),
		logger.Int("days", report.Meta.Days),
	)
	return nil
}

// MilestoneGranularity returns the configured milestone granularity.
func (s *Service) MilestoneGranularity() int64 { return s.granularity }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"schedule":     s.schedule,
		"recentWindow": s.recentWindow.String(),
		"granularity":  s.granularity,
		"collections":  s.collections,
		"lastRunId":    s.lastRunID,
		"lastError":    s.lastError,
	}
	if !s.lastCollection.IsZero() {
		stats["lastCollection"] = s.lastCollection.UTC().Format(time.RFC3339)
	}
	if s.cron != nil {
		if entries := s.cron.Entries(); len(entries) > 0 {
			stats["nextCollection"] = entries[0].Next.UTC().Format(time.RFC3339)
		}
	}
	return stats
}
