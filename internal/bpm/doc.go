// Package bpm provides the authenticated HTTP client for the solar BPM API.
//
// # Overview
//
// Every call to the backend goes through Client. It attaches the bearer token
// held by the session store, recovers from an expired token once, and turns
// non-2xx responses into typed errors. Resource-specific code lives in the
// resource package; this package knows nothing about leads or installs.
//
// # Architecture
//
//   - client.go: request construction, the 401 recovery path, GET de-duplication
//   - auth.go: login, probe, refresh and logout plus the AuthState machine
//   - errors.go: ErrUnauthorized and APIError
//
// # Client Usage
//
//	store, _ := session.New(session.FileStorage{Path: cfg.SessionPath})
//	client, err := bpm.NewClient(cfg.APIURL, store, bpm.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	if _, err := client.Login(ctx, email, password); err != nil {
//		return err
//	}
//	var leads []json.RawMessage
//	err = client.Do(ctx, bpm.Request{Path: "/api/leads"}, &leads)
//
// # Token Recovery
//
// A 401 from any request goes through the same sequence:
//
//  1. Call GET /auth/refresh. The refresh credential is a cookie kept in the
//     session jar, so no bearer token is sent.
//  2. On success store the new token, notify subscribers and replay the
//     original request exactly once with the new token.
//  3. If the refresh fails, or the replay is rejected again, clear the session,
//     notify subscribers with "" and return ErrUnauthorized.
//
// Concurrent requests that hit a 401 with the same stale token share one
// refresh call. A request that saw a 401 after another goroutine already
// refreshed replays with the newer token without refreshing again.
//
// The auth endpoints themselves (login, probe, refresh, logout) never enter
// this path. A failed probe is reported to the caller and nothing more.
//
// # Auth State
//
//	Unauthenticated --login/probe ok--> Authenticated
//	Authenticated   --401-->            Refreshing
//	Refreshing      --refresh ok-->     Authenticated
//	Refreshing      --refresh failed--> Unauthenticated
//	any             --logout-->         Unauthenticated
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation
//   - Set Accept: application/json and the configured User-Agent
//   - Carry a fresh X-Request-ID for correlation in backend logs
//   - Encode Body as JSON when present
//
// Identical GETs in flight at the same time (same path, query and token) share
// one round trip. Writes are never shared.
//
// # Error Handling
//
//   - "execute request: ...": network failure, returned as is, never retried
//   - *APIError: any other non-2xx status, with the body trimmed to 2 KiB
//   - ErrUnauthorized: terminal auth failure, the session is already cleared
//   - "decode response: ...": malformed JSON
//
// # URL Construction
//
// The base URL accepts "host:port" or a full URL. The scheme defaults to
// http:// and any query or fragment is dropped. A path prefix is kept so the
// API can sit behind a reverse proxy at, say, https://ops.example.com/bpm.
package bpm
