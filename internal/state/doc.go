// Package state holds the notification snapshot shared by the background
// poller and the terminal browser.
//
// # Overview
//
// The poller writes the signed-in user's notifications into a Store; the
// browser reads a Snapshot whenever it redraws its header. Neither side waits
// on the other's network I/O.
//
//	Poller:                         Browser:
//	Notifications.All(ctx)          store.Snapshot()
//	store.Update(notes, err)  --->  render "3 unread"
//
// # Update Semantics
//
//	// Success: replace the data, clear the error
//	store.Update(notes, nil)
//	-> Notifications = notes, Unread = count(!Read), LastError = nil
//
//	// Failure: keep the old data, record the error
//	store.Update(nil, err)
//	-> Notifications unchanged, LastError = err, ConsecutiveFailures++
//
// Two or more consecutive failures mark the snapshot offline.
//
// SetSignedIn is driven by the session store's subscription. Signing out
// clears the notifications so a different user never sees them.
//
// # Concurrency
//
// Store uses a sync.RWMutex: Update and SetSignedIn take the write lock,
// Snapshot the read lock. Snapshots are returned by value with the slice
// cloned and the error rewrapped, so callers may keep or modify them freely.
//
// The zero Store is ready to use.
package state
