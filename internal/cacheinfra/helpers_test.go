package cacheinfra

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
)

type row struct{ ID int }

func (r *row) EntityID() int { return r.ID }

type testFilter string

func (f testFilter) String() string       { return string(f) }
func (f testFilter) IsIDFilter() bool     { return false }
func (f testFilter) IsRefreshCache() bool { return false }

func testKey(i int) cache.QueryKey {
	return cache.MustQueryKey("contracts", testFilter(fmt.Sprintf("company(%d)", i)), cache.AllFields, reflect.TypeOf(row{}))
}

func rows(ids ...int) []cache.Entity {
	out := make([]cache.Entity, len(ids))
	for i, id := range ids {
		out[i] = &row{ID: id}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedRemoval struct {
	key   string
	cause cache.RemovalCause
}

// recordingObserver captures removal notifications for assertions.
type recordingObserver struct {
	mu       sync.Mutex
	removals []recordedRemoval
}

func (o *recordingObserver) OnEvict(key cache.QueryKey, cause cache.RemovalCause) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removals = append(o.removals, recordedRemoval{key: key.String(), cause: cause})
}

func (o *recordingObserver) get() []recordedRemoval {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]recordedRemoval(nil), o.removals...)
}

func (o *recordingObserver) count(cause cache.RemovalCause) int {
	n := 0
	for _, r := range o.get() {
		if r.cause == cause {
			n++
		}
	}
	return n
}
