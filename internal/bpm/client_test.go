package bpm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/solarops/internal/apitest"
	"github.com/five82/solarops/internal/session"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func loggedInClient(t *testing.T, srv *apitest.Server) (*Client, *session.Store) {
	t.Helper()
	store, err := session.New(nil)
	require.NoError(t, err)
	c, err := NewClient(srv.URL, store)
	require.NoError(t, err)
	_, err = c.Login(testContext(t), apitest.Email, apitest.Password)
	require.NoError(t, err)
	return c, store
}

type recorder struct {
	mu     sync.Mutex
	tokens []string
}

func (r *recorder) record(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

func TestParseBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "http://127.0.0.1:8080"},
		{"localhost:9000", "http://localhost:9000"},
		{"https://ops.example.com/bpm/", "https://ops.example.com/bpm"},
		{"http://example.com:1234/?x=1#frag", "http://example.com:1234"},
	}
	for _, tt := range tests {
		u, err := parseBaseURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, u.String(), tt.in)
	}

	_, err := parseBaseURL("http://")
	assert.Error(t, err)
}

func TestClient_LoginStoresTokenAndCookie(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)

	assert.True(t, store.HasToken())
	assert.Equal(t, Authenticated, c.State())
	claims, err := store.Claims()
	require.NoError(t, err)
	assert.Equal(t, apitest.Email, claims.Email)

	base, _ := parseBaseURL(srv.URL)
	cookies := c.http.Jar.Cookies(base)
	require.Len(t, cookies, 1)
	assert.Equal(t, apitest.RefreshCookie, cookies[0].Name)
}

func TestClient_LoginRejectedDoesNotRefresh(t *testing.T) {
	srv := apitest.New(t)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Login(testContext(t), apitest.Email, "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Zero(t, srv.Refreshes())
	assert.Equal(t, Unauthenticated, c.State())
	assert.False(t, c.Sessions().HasToken())

	_, err = c.Login(testContext(t), " ", "x")
	assert.Error(t, err)
}

func TestClient_ReplaysOnceAfterRefresh(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed("leads", map[string]any{"id": "l1", "name": "Sunny Roofs"})
	c, store := loggedInClient(t, srv)
	before := store.Token()

	var rec recorder
	sub := store.Subscribe(context.Background(), nil, rec.record)
	defer sub.Unsubscribe()

	srv.ExpireTokens()

	var leads []map[string]any
	require.NoError(t, c.Do(testContext(t), Request{Path: "/api/leads"}, &leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "Sunny Roofs", leads[0]["name"])

	assert.Equal(t, 1, srv.Refreshes())
	assert.Equal(t, 2, srv.Hits("GET /api/leads"))
	assert.NotEqual(t, before, store.Token())
	assert.Equal(t, Authenticated, c.State())
	assert.Equal(t, []string{before, store.Token()}, rec.all())
}

func TestClient_RefreshFailureEndsSession(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)

	var rec recorder
	sub := store.Subscribe(context.Background(), nil, rec.record)
	defer sub.Unsubscribe()

	srv.ExpireTokens()
	srv.RevokeRefresh()

	err := c.Do(testContext(t), Request{Path: "/api/leads"}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	assert.Equal(t, 1, srv.Refreshes())
	assert.Equal(t, 1, srv.Hits("GET /api/leads"), "request must not be replayed")
	assert.False(t, store.HasToken())
	assert.Equal(t, Unauthenticated, c.State())
	got := rec.all()
	require.NotEmpty(t, got)
	assert.Equal(t, "", got[len(got)-1])
}

func TestClient_ReplayRejectedIsTerminal(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)
	srv.Fail("GET /api/installs", http.StatusUnauthorized, 2)

	err := c.Do(testContext(t), Request{Path: "/api/installs"}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, srv.Refreshes())
	assert.Equal(t, 2, srv.Hits("GET /api/installs"))
	assert.False(t, store.HasToken())
}

func TestClient_OtherErrorsAreNotRetried(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)
	srv.Fail("GET /api/customers", http.StatusInternalServerError, 1)

	err := c.Do(testContext(t), Request{Path: "/api/customers"}, nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "injected failure")
	assert.Equal(t, 1, srv.Hits("GET /api/customers"))
	assert.Zero(t, srv.Refreshes())
	assert.True(t, store.HasToken())

	err = c.Do(testContext(t), Request{Path: "/api/customers", Query: map[string][]string{"id": {"missing"}}}, nil)
	assert.True(t, IsNotFound(err))
}

func TestClient_NetworkErrorsPropagate(t *testing.T) {
	srv := apitest.New(t)
	c, _ := loggedInClient(t, srv)
	srv.Close()

	err := c.Do(testContext(t), Request{Path: "/api/leads"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
	assert.Zero(t, StatusCode(err))
}

func TestClient_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	srv := apitest.New(t)
	c, _ := loggedInClient(t, srv)
	srv.ExpireTokens()

	paths := []string{"/api/leads", "/api/installs", "/api/customers", "/api/services", "/api/stock"}
	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			errs[i] = c.Do(testContext(t), Request{Path: p}, nil)
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, paths[i])
	}
	assert.Equal(t, 1, srv.Refreshes())
}

func TestClient_IdenticalGetsShareRoundTrip(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed("events", map[string]any{"id": "e1"})
	c, _ := loggedInClient(t, srv)

	release := srv.Hold("GET /api/events")
	defer release()

	var wg sync.WaitGroup
	results := make([][]map[string]any, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Do(testContext(t), Request{Path: "/api/events"}, &results[i]))
		}(i)
	}
	require.Eventually(t, func() bool { return srv.Hits("GET /api/events") == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, srv.Hits("GET /api/events"))
	assert.Equal(t, results[0], results[1])
	require.Len(t, results[0], 1)
}

func TestClient_CancelledCallerDoesNotFailSharedGet(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed("leads", map[string]any{"id": "l1"})
	c, _ := loggedInClient(t, srv)

	release := srv.Hold("GET /api/leads")
	defer release()

	ctxA, cancelA := context.WithCancel(testContext(t))
	errA := make(chan error, 1)
	go func() { errA <- c.Do(ctxA, Request{Path: "/api/leads"}, nil) }()
	require.Eventually(t, func() bool { return srv.Hits("GET /api/leads") == 1 }, 2*time.Second, 5*time.Millisecond)

	var leadsB []map[string]any
	errB := make(chan error, 1)
	go func() { errB <- c.Do(testContext(t), Request{Path: "/api/leads"}, &leadsB) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller still waiting on the shared request")
	}

	// A caller arriving after the cancellation gets its own round trip.
	var leadsC []map[string]any
	errC := make(chan error, 1)
	go func() { errC <- c.Do(testContext(t), Request{Path: "/api/leads"}, &leadsC) }()
	require.Eventually(t, func() bool { return srv.Hits("GET /api/leads") == 2 }, 2*time.Second, 5*time.Millisecond)

	release()
	require.NoError(t, <-errB)
	require.NoError(t, <-errC)
	assert.Len(t, leadsB, 1)
	assert.Len(t, leadsC, 1)
}

func TestClient_CancelDuringRefreshKeepsSession(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)
	stale := store.Token()

	var rec recorder
	sub := store.Subscribe(context.Background(), nil, rec.record)
	defer sub.Unsubscribe()

	srv.ExpireTokens()
	release := srv.Hold("GET /auth/refresh")
	defer release()

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan error, 1)
	go func() { done <- c.Do(ctx, Request{Path: "/api/leads"}, nil) }()
	require.Eventually(t, func() bool { return srv.Hits("GET /auth/refresh") == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnauthorized)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller still waiting on the refresh")
	}
	assert.True(t, store.HasToken())
	assert.Equal(t, stale, store.Token())
	assert.NotContains(t, rec.all(), "")

	// The refresh finishes on its own and the next request uses its token.
	release()
	require.Eventually(t, func() bool { return store.Token() != stale && c.State() == Authenticated }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Do(testContext(t), Request{Path: "/api/leads"}, nil))
	assert.Equal(t, 1, srv.Refreshes())
	assert.NotContains(t, rec.all(), "")
}

func TestClient_WritesAndEmptyBodies(t *testing.T) {
	srv := apitest.New(t)
	c, _ := loggedInClient(t, srv)
	ctx := testContext(t)

	var created map[string]any
	require.NoError(t, c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/leads", Body: map[string]any{"name": "Acme"}}, &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	require.NoError(t, c.Do(ctx, Request{Method: http.MethodDelete, Path: "/api/leads", Query: map[string][]string{"id": {id}}}, &created))
	assert.Empty(t, srv.Records("leads"))
}

func TestClient_Download(t *testing.T) {
	srv := apitest.New(t)
	c, _ := loggedInClient(t, srv)
	srv.PutFile("f1", []byte("%PDF-1.7 quote"))

	var buf bytes.Buffer
	info, err := c.Download(testContext(t), Request{Path: "/api/files/download", Query: map[string][]string{"id": {"f1"}}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 quote", buf.String())
	assert.Equal(t, "f1.pdf", info.Filename)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, int64(buf.Len()), info.Size)

	buf.Reset()
	_, err = c.Download(testContext(t), Request{Path: "/api/files/download", Query: map[string][]string{"id": {"nope"}}}, &buf)
	assert.True(t, IsNotFound(err))
	assert.Zero(t, buf.Len())
}

func TestClient_SetsRequestHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	t.Cleanup(server.Close)

	store, _ := session.New(nil)
	require.NoError(t, store.SetToken("tok-1"))
	c, err := NewClient(server.URL, store, WithUserAgent("solarops-test/1"), WithTimeout(time.Second))
	require.NoError(t, err)

	require.NoError(t, c.Do(testContext(t), Request{Method: http.MethodPut, Path: "api/leads", Body: map[string]string{"a": "b"}}, nil))
	assert.Equal(t, "Bearer tok-1", got.Get("Authorization"))
	assert.Equal(t, "solarops-test/1", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	_, err = uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestClient_AuthenticatedProbeDoesNotRefresh(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)

	token, err := c.Authenticated(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, store.Token(), token)

	srv.ExpireTokens()
	_, err = c.Authenticated(testContext(t))
	require.Error(t, err)
	assert.Zero(t, srv.Refreshes())
	assert.True(t, store.HasToken(), "a failed probe leaves the token alone")

	var got []string
	store.Subscribe(testContext(t), c, func(tok string) { got = append(got, tok) })
	assert.Equal(t, []string{""}, got)
	assert.Zero(t, srv.Refreshes())
}

func TestClient_Logout(t *testing.T) {
	srv := apitest.New(t)
	c, store := loggedInClient(t, srv)

	var rec recorder
	store.Subscribe(context.Background(), nil, rec.record)

	require.NoError(t, c.Logout(testContext(t)))
	assert.False(t, store.HasToken())
	assert.Equal(t, Unauthenticated, c.State())
	assert.Equal(t, 1, srv.Hits("POST /auth/logout"))
	assert.Equal(t, "", rec.all()[len(rec.all())-1])

	base, _ := parseBaseURL(srv.URL)
	assert.Empty(t, c.http.Jar.Cookies(base))
}

func TestClient_RefreshCookieSurvivesRestart(t *testing.T) {
	srv := apitest.New(t)
	path := filepath.Join(t.TempDir(), "session.toml")

	first, err := session.New(session.FileStorage{Path: path})
	require.NoError(t, err)
	c, err := NewClient(srv.URL, first)
	require.NoError(t, err)
	_, err = c.Login(testContext(t), apitest.Email, apitest.Password)
	require.NoError(t, err)

	srv.ExpireTokens()

	second, err := session.New(session.FileStorage{Path: path})
	require.NoError(t, err)
	require.True(t, second.HasToken())
	restarted, err := NewClient(srv.URL, second)
	require.NoError(t, err)
	assert.Equal(t, Authenticated, restarted.State())

	require.NoError(t, restarted.Do(testContext(t), Request{Path: "/api/leads"}, nil))
	assert.Equal(t, 1, srv.Refreshes())
}
