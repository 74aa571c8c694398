package domain

import "errors"

var (
	// ErrSourceUnavailable marks a theme or selection backend that failed or timed out.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrAssetFetch marks a single asset transfer failure.
	ErrAssetFetch = errors.New("asset fetch failed")

	// ErrCommit marks an I/O failure while publishing a Generation.
	ErrCommit = errors.New("commit failed")

	// ErrInvalidConfig marks a missing or invalid configuration field.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRunInProgress is returned when a trigger arrives while a run is in flight.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrNoAssets is the cause recorded for a run that fetched nothing.
	ErrNoAssets = errors.New("no assets fetched")
)
