package querycache

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-accelo-cache/cache"
)

var (
	// ErrRemoteFetch marks failures of the external fetch collaborator.
	ErrRemoteFetch = errors.New("remote fetch failed")
	// ErrNilStore is returned by New when no store is supplied.
	ErrNilStore = errors.New("querycache: nil store")
	// ErrNilFetcher is returned by New when no fetcher is supplied.
	ErrNilFetcher = errors.New("querycache: nil fetcher")
)

// FetchError is returned by Get when the fetcher fails. No entry is
// written for Key.
type FetchError struct {
	Key cache.QueryKey
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrRemoteFetch, e.Key, e.Err)
}

// Unwrap returns the fetcher's error.
func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrRemoteFetch as a match.
func (e *FetchError) Is(target error) bool { return target == ErrRemoteFetch }
