// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and XPTRACK_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver selects the history backend: json or sqlite.
	StoreDriver string `koanf:"store_driver" validate:"oneof=json sqlite"`

	// HistoryPath is the date-keyed JSON history file.
	HistoryPath string `koanf:"history_path" validate:"required_if=StoreDriver json"`

	// LatestPath receives the most recent entry after each append. Empty disables it.
	LatestPath string `koanf:"latest_path"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`

	// SnapshotPath keeps yesterday's first highscore page for staleness checks.
	SnapshotPath string `koanf:"snapshot_path"`

	// HighscoreBaseURL is the upstream highscore API root.
	HighscoreBaseURL string `koanf:"highscore_base_url" validate:"required,url"`

	// World, Vocation and Character identify the tracked highscore row.
	World     string `koanf:"world" validate:"required"`
	Vocation  string `koanf:"vocation" validate:"required"`
	Character string `koanf:"character" validate:"required"`

	// MaxPages caps how many highscore pages are searched for the character.
	MaxPages int `koanf:"max_pages" validate:"gte=1"`

	// HTTPTimeoutMS bounds each upstream request.
	HTTPTimeoutMS int `koanf:"http_timeout_ms" validate:"gte=1"`

	// CollectTimeoutMS bounds a whole scheduled collection run.
	CollectTimeoutMS int `koanf:"collect_timeout_ms" validate:"gte=1"`

	// CollectSchedule is a cron spec for the daily collection. Empty disables scheduling.
	CollectSchedule string `koanf:"collect_schedule"`

	// CollectOnStart triggers a collection right after startup.
	CollectOnStart bool `koanf:"collect_on_start"`

	// ReadmePath is patched with the recent-window table after each collection. Empty disables it.
	ReadmePath string `koanf:"readme_path"`

	// RecentWindow is the number of entries in the README table.
	RecentWindow int `koanf:"recent_window" validate:"gte=1"`

	// MilestoneGranularity is the level step used for milestone projections.
	MilestoneGranularity int64 `koanf:"milestone_granularity" validate:"gte=1"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		StoreDriver:          "json",
		HistoryPath:          "./data/xp-history.json",
		LatestPath:           "./data/latest.json",
		SQLitePath:           "./data/xp-history.db",
		SnapshotPath:         "./data/_highscore-snapshot.json",
		HighscoreBaseURL:     "https://dev.tibiadata.com",
		World:                "Vunira",
		Vocation:             "paladins",
		Character:            "Mathias Bynens",
		MaxPages:             20,
		HTTPTimeoutMS:        15_000,
		CollectTimeoutMS:     120_000,
		CollectSchedule:      "CRON_TZ=UTC 30 10 * * *",
		CollectOnStart:       false,
		ReadmePath:           "",
		RecentWindow:         30,
		MilestoneGranularity: 50,
	}
}
