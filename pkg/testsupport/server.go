package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// PageFunc answers one request for a collection. It returns the HTTP
// status and the raw body.
type PageFunc func(query url.Values) (int, []byte)

// AcceloServer is a fake Accelo API. Collections are served under
// /api/v0/{collection}; unknown collections answer 404 with an error
// envelope.
type AcceloServer struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]PageFunc
	requests []*url.URL
}

// NewAcceloServer starts a fake API that is closed when the test ends.
func NewAcceloServer(t testing.TB) *AcceloServer {
	t.Helper()

	s := &AcceloServer{pages: make(map[string]PageFunc)}

	r := chi.NewRouter()
	r.Get("/api/v0/*", s.serve)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *AcceloServer) serve(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "*")

	s.mu.Lock()
	u := *r.URL
	s.requests = append(s.requests, &u)
	page, ok := s.pages[collection]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write(ErrorEnvelope("error", "unknown collection "+collection))
		return
	}

	status, body := page(r.URL.Query())
	w.WriteHeader(status)
	w.Write(body)
}

// Handle registers page for collection, replacing any previous handler.
func (s *AcceloServer) Handle(collection string, page PageFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[collection] = page
}

// HandleRows serves rows for collection as a single page.
func (s *AcceloServer) HandleRows(collection string, rows ...any) {
	body := Envelope(rows...)
	s.Handle(collection, func(url.Values) (int, []byte) {
		return http.StatusOK, body
	})
}

// Requests returns the URLs received so far.
func (s *AcceloServer) Requests() []*url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*url.URL(nil), s.requests...)
}

// Envelope wraps rows in a successful API envelope.
func Envelope(rows ...any) []byte {
	if rows == nil {
		rows = []any{}
	}
	body, err := json.Marshal(map[string]any{
		"meta":     map[string]any{"status": "ok", "message": "Everything executed as expected."},
		"response": rows,
	})
	if err != nil {
		panic(err)
	}
	return body
}

// ErrorEnvelope builds a failed API envelope.
func ErrorEnvelope(status, message string) []byte {
	body, err := json.Marshal(map[string]any{
		"meta": map[string]any{"status": status, "message": message, "more_info": "https://api.accelo.com/docs/#status-codes"},
	})
	if err != nil {
		panic(err)
	}
	return body
}
