package dao

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/entities"
	"github.com/goliatone/go-accelo-cache/pkg/testsupport"
	"github.com/goliatone/go-accelo-cache/querycache"
)

// recordingQuerier tracks calls and hands back scripted rows.
type recordingQuerier struct {
	mu      sync.Mutex
	calls   []string
	keys    []cache.QueryKey
	rows    []cache.Entity
	err     error
	flushed []cache.Entity
}

func (q *recordingQuerier) recordCall(method string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, method)
}

func (q *recordingQuerier) getCalls() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.calls...)
}

func (q *recordingQuerier) lastKey() cache.QueryKey {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.keys) == 0 {
		return cache.QueryKey{}
	}
	return q.keys[len(q.keys)-1]
}

func (q *recordingQuerier) Get(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
	q.recordCall("Get")
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, key)
	return q.rows, q.err
}

func (q *recordingQuerier) FlushEntity(e cache.Entity) {
	q.recordCall("FlushEntity")
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushed = append(q.flushed, e)
}

func (q *recordingQuerier) FlushEntities(list []cache.Entity) {
	q.recordCall("FlushEntities")
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushed = append(q.flushed, list...)
}

func (q *recordingQuerier) FlushQuery(key cache.QueryKey) {
	q.recordCall("FlushQuery")
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, key)
}

// newCoordinator builds a real coordinator over an LRU store and a
// scripted fetcher.
func newCoordinator(t *testing.T) (*querycache.Coordinator, *testsupport.FakeFetcher) {
	t.Helper()

	cfg := querycache.DefaultConfig()
	cfg.SweepInterval = 0
	store, err := querycache.NewStore(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	fetcher := testsupport.NewFakeFetcher()
	coord, err := querycache.New(store, fetcher)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	t.Cleanup(func() { _ = coord.Close() })
	return coord, fetcher
}

func contract(id, companyID int) *entities.Contract {
	return &entities.Contract{ID: id, Title: "contract", AgainstType: "company", AgainstID: companyID}
}

func contractIDs(list []*entities.Contract) []int {
	out := make([]int, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func respondPeriods(fetcher *testsupport.FakeFetcher, contractID int, periods []*entities.ContractPeriod) {
	rows := make([]cache.Entity, len(periods))
	for i, p := range periods {
		rows[i] = p
	}
	fetcher.Respond(fmt.Sprintf("contracts/%d/periods", contractID), "", rows...)
}
