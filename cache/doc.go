// Package cache defines the types shared by the query-result cache.
//
// # Overview
//
// This package exports the value types and contracts used by the cache
// backends (internal/cacheinfra) and the policy layer (querycache):
//
//   - QueryKey: immutable description of a remote query
//   - Entity, Filter, Fields: the collaborator types a key is built from
//   - Store: bounded, idle-expiring store with single-flight loading
//   - EvictionObserver: removal notifications carrying key and cause
//   - KeySerializer: builds the canonical string form of a key
//
// # Query keys
//
// A key is built fresh for every call, so equality is structural:
//
//	key, err := cache.NewQueryKey("contracts", f, cache.AllFields, reflect.TypeOf(entities.Contract{}))
//	if errors.Is(err, cache.ErrInvalidKey) {
//		// blank collection, nil filter or a row type that is not an Entity
//	}
//
// The canonical form joins collection, filter, fields and row type with
// KeySeparator:
//
//	contracts::against(company(42))::_ALL::github.com/goliatone/go-accelo-cache/entities.Contract
//
// The filter's refresh flag is not part of the canonical form, so a
// refresh request addresses the same entry as the plain query.
//
// # Removal notifications
//
// Every removal (explicit, replaced, expired or size) is reported to the
// configured EvictionObserver once the store released its locks. Observers
// can be combined with Observers{a, b}.
//
// # See Also
//
// For the cache-aware query semantics (identity back-fill, refresh
// reconciliation, miss counting) see the querycache package.
package cache
