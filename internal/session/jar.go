package session

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Jar is an http.CookieJar scoped to the API host. Cookies set by the API are
// written through to the store so the refresh credential outlives the process.
type Jar struct {
	store *Store
	host  string
}

// Jar returns a cookie jar bound to the host of base.
func (s *Store) Jar(base *url.URL) *Jar {
	return &Jar{store: s, host: strings.ToLower(base.Hostname())}
}

func (j *Jar) matches(u *url.URL) bool {
	return u != nil && strings.ToLower(u.Hostname()) == j.host
}

// SetCookies merges cookies by name. Expired or negative Max-Age cookies are
// removed; Max-Age takes precedence over Expires.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.matches(u) || len(cookies) == 0 {
		return
	}
	s := j.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	next := make([]Cookie, 0, len(s.state.Cookies)+len(cookies))
	for _, have := range s.state.Cookies {
		if !have.Expired(now) {
			next = append(next, have)
		}
	}
	for _, c := range cookies {
		stored := Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Secure: c.Secure}
		switch {
		case c.MaxAge > 0:
			stored.ExpiresAt = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
		case c.MaxAge == 0 && !c.Expires.IsZero():
			stored.ExpiresAt = c.Expires.Unix()
		}
		expired := c.MaxAge < 0 || stored.Expired(now)

		idx := slices.IndexFunc(next, func(have Cookie) bool { return have.Name == c.Name })
		switch {
		case expired && idx >= 0:
			next = slices.Delete(next, idx, idx+1)
		case expired:
		case idx >= 0:
			next[idx] = stored
		default:
			next = append(next, stored)
		}
	}
	s.state.Cookies = next
	// Losing the cookie only costs a re-login later; requests carry on.
	_ = s.storage.Save(cloneState(s.state))
}

// Cookies returns the unexpired stored cookies that apply to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if !j.matches(u) {
		return nil
	}
	s := j.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make([]*http.Cookie, 0, len(s.state.Cookies))
	for _, c := range s.state.Cookies {
		if c.Expired(now) || (c.Secure && u.Scheme != "https") || !pathMatch(c.Path, u.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// pathMatch implements the cookie path rule: the request path equals the
// cookie path or continues it at a "/" boundary.
func pathMatch(cookiePath, requestPath string) bool {
	if cookiePath == "" || cookiePath == "/" {
		return true
	}
	if requestPath == "" {
		requestPath = "/"
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return len(requestPath) == len(cookiePath) ||
		strings.HasSuffix(cookiePath, "/") ||
		requestPath[len(cookiePath)] == '/'
}
