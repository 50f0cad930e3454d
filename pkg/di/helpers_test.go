package di

import (
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/goliatone/go-accelo-cache/entities"
	"github.com/goliatone/go-accelo-cache/pkg/testsupport"
	"go.uber.org/zap"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Accelo.BaseURL = baseURL
	cfg.Cache.SweepInterval = 0
	return cfg
}

func newTestContainer(t testing.TB, cfg Config, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	c, err := NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// filteredRows answers a collection by its `_filters` value and counts
// requests per filter.
type filteredRows struct {
	mu     sync.Mutex
	rows   map[string][]any
	counts map[string]int
}

func newFilteredRows() *filteredRows {
	return &filteredRows{rows: make(map[string][]any), counts: make(map[string]int)}
}

func (f *filteredRows) set(filters string, rows ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[filters] = rows
}

func (f *filteredRows) count(filters string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[filters]
}

func (f *filteredRows) page(query url.Values) (int, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filters := query.Get("_filters")
	f.counts[filters]++
	return http.StatusOK, testsupport.Envelope(f.rows[filters]...)
}

func contractRow(id int, title string) *entities.Contract {
	return &entities.Contract{ID: id, Title: title, AgainstType: "company", AgainstID: 42}
}
