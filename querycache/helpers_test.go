package querycache

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/entities"
	"github.com/goliatone/go-accelo-cache/filter"
	"github.com/goliatone/go-accelo-cache/internal/cacheinfra"
	"github.com/goliatone/go-accelo-cache/pkg/testsupport"
)

var (
	contractType = reflect.TypeOf(entities.Contract{})
	periodType   = reflect.TypeOf(entities.ContractPeriod{})
)

const byCompany42 = "against(company(42))"

func companyFilter(id int) filter.Filter {
	return filter.Where(filter.Compound("against", filter.Eq("company", id)))
}

func contractsKey(f filter.Filter) cache.QueryKey {
	return cache.MustQueryKey("contracts", f, cache.AllFields, contractType)
}

func contractIDKey(id int) cache.QueryKey {
	return contractsKey(filter.ByID(id))
}

func contract(id int) *entities.Contract {
	return &entities.Contract{ID: id, Title: "contract", AgainstType: "company", AgainstID: 42}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type fixture struct {
	coord   *Coordinator
	store   *cacheinfra.LRUStore
	fetcher *testsupport.FakeFetcher
	clock   *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := cacheinfra.DefaultConfig()
	cfg.SweepInterval = 0
	cfg.Now = clock.Now

	store, err := cacheinfra.NewLRUStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	fetcher := testsupport.NewFakeFetcher()
	coord, err := New(store, fetcher, opts...)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	t.Cleanup(func() { coord.Close() })

	return &fixture{coord: coord, store: store, fetcher: fetcher, clock: clock}
}

func ids(entities []cache.Entity) []int {
	out := make([]int, len(entities))
	for i, e := range entities {
		out[i] = e.EntityID()
	}
	return out
}

// versioned compares by content so a changed row is not the same entity.
type versioned struct {
	ID  int
	Rev int
}

func (v *versioned) EntityID() int { return v.ID }

func (v *versioned) Equal(other cache.Entity) bool {
	o, ok := other.(*versioned)
	return ok && o.ID == v.ID && o.Rev == v.Rev
}
