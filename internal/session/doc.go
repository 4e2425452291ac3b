// Package session holds the bearer token used to call the BPM API.
//
// # Overview
//
// A Store is the single place that knows whether a usable credential exists.
// It is created once and handed to whatever needs it; there is no package
// level singleton.
//
//	store, err := session.New(session.FileStorage{Path: cfg.SessionPath})
//	sub := store.Subscribe(ctx, client, func(token string) {
//		if token == "" {
//			// show login
//		}
//	})
//	defer sub.Unsubscribe()
//
// # Storage
//
// Two Storage implementations exist:
//
//   - FileStorage: a 0600 TOML file, used by the CLI so the session survives
//     between invocations.
//   - MemoryStorage: process-scoped, used by tests and embedders that want a
//     session to end with the process.
//
// SetToken and ClearToken write through to storage immediately.
//
// # Subscriptions
//
// Subscribe registers a callback and probes the API's "who am I" endpoint
// once. Notify fans a token out to every callback synchronously, in
// registration order. Each Subscribe returns a handle whose Unsubscribe removes
// the callback.
//
// # Cookies
//
// The refresh endpoint authenticates with a long-lived cookie. Store.Jar
// returns an http.CookieJar limited to the API host that persists cookies
// next to the token, and ClearToken drops them together.
package session
