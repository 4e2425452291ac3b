// Package app is the composition root for solarops.
//
// # Overview
//
// New turns a resolved config.Config into the live object graph every command
// needs:
//
//	config.Config
//	  ├─> session.New(FileStorage)     persisted token + refresh cookie
//	  ├─> bpm.NewClient(...)           authenticated HTTP client
//	  ├─> resource.NewCatalog(...)     typed collections + list pipeline
//	  └─> &state.Store{}               notification snapshot
//
// The CLI commands use Client and Catalog directly. Browse additionally starts
// the background poller and the terminal browser.
//
// # Browse
//
//	Browse(ctx, "installs")
//	  ├─> Sessions.Subscribe(client)   probe /auth/authenticated once,
//	  │                                 keep State.SignedIn current
//	  ├─> Poller.Start(ctx)            notifications every poll_interval
//	  └─> ui.Run(...)                  blocks until the user quits
//
// The subscription is released when Browse returns, and cancelling ctx stops
// the poller.
//
// # Polling Behavior
//
// Each tick fetches /api/notifications and writes the result into the state
// store. Failures keep the previous data and double the wait before the next
// tick, capped at five minutes; the first success restores the normal cadence.
// While the session holds no token the poller makes no requests at all.
//
// Poll failures are logged at warn and never returned: the browser shows
// them in its header instead.
package app
