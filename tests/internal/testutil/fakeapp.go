//go:build integration

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeApp is an in-memory stand-in for the application under test. It
// exposes the small REST surface the toolkit drives during tests: resource
// creation, deletion by DELETE or POST, and a health endpoint. Deletions can
// be forced to fail a configurable number of times to exercise cleanup
// retries.
//
// All methods are safe for concurrent use; parallel tests should still give
// their resources unique IDs (see UniqueName) so assertions do not overlap.
type FakeApp struct {
	mu        sync.Mutex
	resources map[string]Resource
	failures  map[string]int // remaining forced delete failures per key
	deletions []string       // "kind/id" keys in successful-deletion order

	server *httptest.Server
}

// Resource is one object stored in the fake application.
type Resource struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewFakeApp starts a fake application server that is shut down when the
// test finishes.
func NewFakeApp(t *testing.T) *FakeApp {
	t.Helper()

	app := &FakeApp{
		resources: make(map[string]Resource),
		failures:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/{kind}", app.handleCreate)
	mux.HandleFunc("DELETE /api/v1/{kind}/{id}", app.handleDelete)
	// Some resources are removed through an action endpoint instead of a
	// DELETE verb; the tracker supports both.
	mux.HandleFunc("POST /api/v1/{kind}/{id}/archive", app.handleDelete)

	app.server = httptest.NewServer(mux)
	t.Cleanup(app.server.Close)
	return app
}

// BaseURL returns the root URL of the fake application.
func (a *FakeApp) BaseURL() string {
	return a.server.URL
}

func key(kind, id string) string {
	return kind + "/" + id
}

func (a *FakeApp) handleCreate(w http.ResponseWriter, r *http.Request) {
	var res Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	res.Kind = r.PathValue("kind")
	if res.ID == "" {
		http.Error(w, "id must not be empty", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(res.Kind, res.ID)
	if _, exists := a.resources[k]; exists {
		http.Error(w, "resource already exists", http.StatusConflict)
		return
	}
	a.resources[k] = res

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(res)
}

func (a *FakeApp) handleDelete(w http.ResponseWriter, r *http.Request) {
	k := key(r.PathValue("kind"), r.PathValue("id"))

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failures[k] > 0 {
		a.failures[k]--
		http.Error(w, "simulated delete failure", http.StatusInternalServerError)
		return
	}
	if _, exists := a.resources[k]; !exists {
		http.Error(w, "resource not found", http.StatusNotFound)
		return
	}
	delete(a.resources, k)
	a.deletions = append(a.deletions, k)
	w.WriteHeader(http.StatusNoContent)
}

// Seed stores a resource directly, bypassing the HTTP surface.
func (a *FakeApp) Seed(kind, id, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resources[key(kind, id)] = Resource{Kind: kind, ID: id, Name: name}
}

// FailDeletes makes the next times delete calls for the resource fail with
// a 500 before deletion starts succeeding again.
func (a *FakeApp) FailDeletes(kind, id string, times int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[key(kind, id)] = times
}

// Deletions returns the "kind/id" keys of successfully deleted resources in
// deletion order.
func (a *FakeApp) Deletions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.deletions))
	copy(out, a.deletions)
	return out
}

// Has reports whether the resource currently exists.
func (a *FakeApp) Has(kind, id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.resources[key(kind, id)]
	return ok
}

// ResourceCount returns the number of stored resources.
func (a *FakeApp) ResourceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.resources)
}
