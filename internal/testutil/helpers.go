package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/store"
)

// Catalog is a small organization used across API and CLI tests.
//
//	team 10 (org 7): members 1..4
//	  1: department=eng, languages=[en,de], city=Berlin, seniority=8
//	  2: department=sales, languages=[en], city=Paris, seniority=3
//	  3: department=eng, languages=[] (assigned, empty)
//	  4: nothing assigned
//	team 20: no organization, members 5, 6
const Catalog = `
organizations:
  - id: 7
    attributes:
      - id: dept
        slug: department
        name: Department
        type: SINGLE_SELECT
        options:
          - {id: opt-eng, value: Engineering}
          - {id: opt-sales, value: Sales}
      - id: lang
        slug: languages
        name: Languages
        type: MULTI_SELECT
        options:
          - {id: opt-en, value: English}
          - {id: opt-de, value: German}
      - id: city
        slug: city
        name: City
        type: TEXT
      - id: seniority
        slug: seniority
        name: Seniority
        type: NUMBER
    assignments:
      - member: 1
        values: {dept: [opt-eng], lang: [opt-en, opt-de], city: [Berlin], seniority: ["8"]}
      - member: 2
        values: {dept: [opt-sales], lang: [opt-en], city: [Paris], seniority: ["3"]}
      - member: 3
        values: {dept: [opt-eng], lang: []}
teams:
  - {id: 10, orgId: 7, members: [1, 2, 3, 4]}
  - {id: 20, members: [5, 6]}
`

// NewStore returns a memory store seeded with Catalog.
func NewStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.LoadFixture([]byte(Catalog)); err != nil {
		t.Fatalf("load catalog fixture: %v", err)
	}
	return st
}

// NewTestServer creates a test server backed by NewStore.
func NewTestServer(t *testing.T) (*api.Server, *store.MemoryStore) {
	t.Helper()
	st := NewStore(t)
	server := api.NewServer(api.Options{
		Store:        st,
		Matcher:      matching.NewMatcher(st, matching.WithWorkers(2)),
		Logger:       zerolog.Nop(),
		MatchTimeout: time.Second,
		TieBreakSeed: "test-seed",
	})
	return server, st
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
