package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	token string
	err   error
	calls int
}

func (f *fakeProber) Authenticated(context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

func TestStore_SetAndClearWriteThrough(t *testing.T) {
	storage := &MemoryStorage{}
	s, err := New(storage)
	require.NoError(t, err)
	assert.False(t, s.HasToken())

	require.NoError(t, s.SetToken("abc"))
	persisted, err := storage.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", persisted.Token)
	assert.False(t, persisted.UpdatedAt.IsZero())

	require.NoError(t, s.ClearToken())
	persisted, _ = storage.Load()
	assert.Empty(t, persisted.Token)
	assert.Empty(t, s.Token())
}

func TestStore_NewLoadsPersistedToken(t *testing.T) {
	storage := &MemoryStorage{}
	require.NoError(t, storage.Save(State{Token: "persisted"}))

	s, err := New(storage)
	require.NoError(t, err)
	assert.Equal(t, "persisted", s.Token())
}

func TestStore_NotifyInRegistrationOrder(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)

	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.Subscribe(context.Background(), nil, func(token string) {
			if token == "tok" {
				got = append(got, name)
			}
		})
	}
	s.Notify("tok")
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStore_Unsubscribe(t *testing.T) {
	s, _ := New(nil)
	calls := 0
	sub := s.Subscribe(context.Background(), nil, func(string) { calls++ })
	require.Equal(t, 1, calls)
	require.Equal(t, 1, s.Subscribers())

	sub.Unsubscribe()
	sub.Unsubscribe()
	s.Notify("x")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Subscribers())
}

func TestStore_SubscribeProbeSuccessStoresToken(t *testing.T) {
	storage := &MemoryStorage{}
	s, _ := New(storage)
	prober := &fakeProber{token: "fresh"}

	var got []string
	s.Subscribe(context.Background(), prober, func(token string) { got = append(got, token) })

	assert.Equal(t, 1, prober.calls)
	assert.Equal(t, []string{"fresh"}, got)
	assert.Equal(t, "fresh", s.Token())
	persisted, _ := storage.Load()
	assert.Equal(t, "fresh", persisted.Token)
}

func TestStore_SubscribeProbeFailureReportsNoToken(t *testing.T) {
	s, _ := New(nil)
	require.NoError(t, s.SetToken("old"))
	prober := &fakeProber{err: errors.New("offline")}

	var got []string
	s.Subscribe(context.Background(), prober, func(token string) { got = append(got, token) })

	assert.Equal(t, 1, prober.calls, "probe must not be retried")
	assert.Equal(t, []string{""}, got)
}

func TestFileStorage_RoundTripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.toml")
	fs := FileStorage{Path: path}

	st, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Token)

	require.NoError(t, fs.Save(State{Token: "tok", Cookies: []Cookie{{Name: "refresh", Value: "r1"}}}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	st, err = fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", st.Token)
	assert.Equal(t, []Cookie{{Name: "refresh", Value: "r1"}}, st.Cookies)

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorage_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	require.NoError(t, os.WriteFile(path, []byte("token = ["), 0o600))

	st, err := FileStorage{Path: path}.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Token)
}

func TestJar_PersistsHostCookies(t *testing.T) {
	storage := &MemoryStorage{}
	s, _ := New(storage)
	base, _ := url.Parse("https://api.example.com")
	jar := s.Jar(base)

	jar.SetCookies(base, []*http.Cookie{{Name: "refresh", Value: "r1"}})
	jar.SetCookies(&url.URL{Scheme: "https", Host: "evil.example.net"}, []*http.Cookie{{Name: "x", Value: "y"}})

	cookies := jar.Cookies(&url.URL{Scheme: "https", Host: "API.example.com", Path: "/auth/refresh"})
	require.Len(t, cookies, 1)
	assert.Equal(t, "r1", cookies[0].Value)
	assert.Empty(t, jar.Cookies(&url.URL{Scheme: "https", Host: "evil.example.net"}))

	jar.SetCookies(base, []*http.Cookie{{Name: "refresh", Value: "r2"}})
	persisted, _ := storage.Load()
	assert.Equal(t, []Cookie{{Name: "refresh", Value: "r2"}}, persisted.Cookies)

	jar.SetCookies(base, []*http.Cookie{{Name: "refresh", MaxAge: -1}})
	assert.Empty(t, jar.Cookies(base))

	jar.SetCookies(base, []*http.Cookie{{Name: "refresh", Value: "r3"}})
	require.NoError(t, s.ClearToken())
	assert.Empty(t, jar.Cookies(base))
}

func TestJar_HonoursExpiryPathAndSecure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	s, err := New(FileStorage{Path: path})
	require.NoError(t, err)
	base, _ := url.Parse("http://api.example.com")
	jar := s.Jar(base)

	jar.SetCookies(base, []*http.Cookie{
		{Name: "refresh", Value: "r1", Path: "/auth", Expires: time.Now().Add(-time.Minute)},
		{Name: "short", Value: "s1", MaxAge: 3600},
		{Name: "scoped", Value: "p1", Path: "/auth"},
		{Name: "tls", Value: "t1", Secure: true},
	})

	names := func(u string) []string {
		parsed, err := url.Parse(u)
		require.NoError(t, err)
		var out []string
		for _, c := range jar.Cookies(parsed) {
			out = append(out, c.Name)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"short", "scoped"}, names("http://api.example.com/auth/refresh"))
	assert.ElementsMatch(t, []string{"short"}, names("http://api.example.com/authx"))
	assert.ElementsMatch(t, []string{"short", "tls"}, names("https://api.example.com/api/leads"))

	// Expiry survives a restart and an expired cookie is never sent.
	reloaded, err := New(FileStorage{Path: path})
	require.NoError(t, err)
	persisted := reloaded.state.Cookies
	require.Len(t, persisted, 3)
	for _, c := range persisted {
		if c.Name == "short" {
			assert.Greater(t, c.ExpiresAt, time.Now().Unix())
		}
	}

	stale := Cookie{Name: "old", Value: "o1", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	require.NoError(t, s.storage.Save(State{Cookies: []Cookie{stale}}))
	restarted, err := New(FileStorage{Path: path})
	require.NoError(t, err)
	assert.Empty(t, restarted.Jar(base).Cookies(base))
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ops@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	s, _ := New(nil)
	_, err = s.Claims()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.SetToken(signed))
	claims, err := s.Claims()
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Minute)))

	_, err = ParseClaims("not-a-jwt")
	assert.ErrorIs(t, err, ErrOpaqueToken)
}
