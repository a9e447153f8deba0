package service

import "errors"

var (
	// ErrAlreadyCollected is returned when today's entry is already stored.
	ErrAlreadyCollected = errors.New("already collected today")
	// ErrNoFetcher is returned by Collect when no fetcher is configured.
	ErrNoFetcher = errors.New("no highscore fetcher configured")
	// ErrNoStore is returned when the service has no history store.
	ErrNoStore = errors.New("no history store configured")
)
