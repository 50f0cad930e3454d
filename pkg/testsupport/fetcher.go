package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-accelo-cache/cache"
)

// FakeFetcher is a scripted stand-in for the remote API. Responses are
// keyed by collection and canonical filter; unscripted queries return no
// rows. Every call is recorded.
type FakeFetcher struct {
	mu        sync.Mutex
	calls     []cache.QueryKey
	responses map[string][]cache.Entity
	errs      map[string]error
	gate      chan struct{}
	entered   chan struct{}
}

// NewFakeFetcher creates an empty FakeFetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		responses: make(map[string][]cache.Entity),
		errs:      make(map[string]error),
	}
}

func scriptKey(collection, filter string) string {
	return collection + "?" + filter
}

// Respond scripts the rows returned for collection and filter, replacing
// any earlier script or failure.
func (f *FakeFetcher) Respond(collection, filter string, entities ...cache.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := scriptKey(collection, filter)
	f.responses[k] = entities
	delete(f.errs, k)
}

// Fail scripts an error for collection and filter.
func (f *FakeFetcher) Fail(collection, filter string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[scriptKey(collection, filter)] = err
}

// Block makes every following FetchAll wait until release is called.
// entered receives one value per blocked call.
func (f *FakeFetcher) Block() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	f.gate = gate
	f.entered = make(chan struct{}, 1024)

	var once sync.Once
	return f.entered, func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// FetchAll records the call and returns the scripted outcome.
func (f *FakeFetcher) FetchAll(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	gate, entered := f.gate, f.entered
	k := scriptKey(key.Collection(), key.Filter().String())
	rows, err := f.responses[k], f.errs[k]
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return append([]cache.Entity(nil), rows...), nil
}

// Calls returns every recorded key in call order.
func (f *FakeFetcher) Calls() []cache.QueryKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cache.QueryKey(nil), f.calls...)
}

// CallCount returns the number of FetchAll calls.
func (f *FakeFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// CallsFor returns how many calls were made for collection and filter.
func (f *FakeFetcher) CallsFor(collection, filter string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, key := range f.calls {
		if key.Collection() == collection && key.Filter().String() == filter {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls. Scripts are kept.
func (f *FakeFetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
