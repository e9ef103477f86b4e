package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/credstore"
	"github.com/jobmarket/marketplace-client/internal/httpclient"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// recordedRequest is what the fake backend saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	CType  string
	Body   string
}

// backend is an httptest server with per-path handlers that records every request.
type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{t: t, handlers: make(map[string]http.HandlerFunc)}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			CType:  r.Header.Get("Content-Type"),
			Body:   string(body),
		})
		h, ok := b.handlers[r.URL.Path]
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) handle(path string, h http.HandlerFunc) {
	b.mu.Lock()
	b.handlers["/api"+path] = h
	b.mu.Unlock()
}

func (b *backend) baseURL() string { return b.srv.URL + "/api" }

// calls returns the recorded requests for path (without the /api prefix).
func (b *backend) calls(path string) []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedRequest
	for _, r := range b.requests {
		if r.Path == "/api"+path {
			out = append(out, r)
		}
	}
	return out
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// requireBearer answers 200 with body only when the request carries Bearer token.
func requireBearer(token, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			respond(http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`)(w, r)
			return
		}
		respond(http.StatusOK, body)(w, r)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev model.SessionEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []model.SessionEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.SessionEventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

// doerFunc lets a test intercept individual round trips.
type doerFunc func(ctx context.Context, req *http.Request, key string) (*httpclient.Response, error)

func (f doerFunc) Do(ctx context.Context, req *http.Request, key string) (*httpclient.Response, error) {
	return f(ctx, req, key)
}

// seedStore returns a memory store holding the given session keys.
func seedStore(t *testing.T, kv map[string]string) *credstore.MemoryStore {
	t.Helper()
	s := credstore.NewMemoryStore()
	for k, v := range kv {
		require.NoError(t, s.Set(context.Background(), k, v))
	}
	return s
}

func newTestClient(t *testing.T, b *backend, store credstore.Store, n SessionNotifier) *Client {
	t.Helper()
	exec := httpclient.New(zap.NewNop(), nil, b.srv.Client(), "test")
	c, err := NewClient(context.Background(), zap.NewNop(), b.baseURL(), exec, store, n)
	require.NoError(t, err)
	return c
}

func assertKeysAbsent(t *testing.T, s credstore.Store) {
	t.Helper()
	for _, k := range credstore.SessionKeys {
		_, err := s.Get(context.Background(), k)
		require.ErrorIs(t, err, credstore.ErrNotFound, k)
	}
}
