package repository

// Option applies a configuration option to the JSONStore.
type Option func(*JSONStore)

// WithLatestPath writes the most recent entry to path after each append.
func WithLatestPath(path string) Option {
	return func(s *JSONStore) {
		s.latestPath = path
	}
}
