// Package querycache is the policy layer of the query cache.
//
// A Coordinator sits between the data access objects and a cache.Store.
// Every remote query is identified by a cache.QueryKey and answered with
// the rows the Fetcher returned for it.
//
// # Get
//
//   - Hit: the cached rows are returned and the fetcher is not called.
//   - Cold miss: the fetcher is called once for all concurrent callers of
//     the key. Each row of a list result is also published under its
//     identity key (same collection, fields and row type, filter id(N)),
//     so a later by-id lookup is a hit.
//   - Refresh (the key's filter carries the refresh flag): the entry is
//     dropped and fetched again. Identity rows of entities that were in the
//     old result but are not in the new one are invalidated.
//
// Fetch failures are returned as *FetchError (errors.Is(err,
// ErrRemoteFetch)) and are never cached.
//
// # Miss counting
//
// MissCount is incremented inside the single-flight loader before the
// fetch starts: a failed fetch counts as a miss, callers waiting on
// another caller's fetch do not.
//
// # Flushing
//
// FlushEntity only removes identity rows. A list query whose result holds
// the flushed entity keeps serving it until the list entry expires, is
// evicted or is refreshed.
//
// # Wiring
//
//	store, err := querycache.NewStore(querycache.DefaultConfig(), logger,
//		querycache.LoggingObserver(logger), metrics)
//	coord, err := querycache.New(store, client,
//		querycache.WithLogger(logger), querycache.WithMetrics(metrics))
package querycache
