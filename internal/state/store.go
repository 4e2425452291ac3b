package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/solarops/internal/resource"
)

// Snapshot represents the latest notification data available to the UI.
type Snapshot struct {
	Notifications       []resource.Notification
	Unread              int
	HasData             bool
	SignedIn            bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored notifications. When err is non-nil the previous
// data is kept but the error is recorded for visibility.
func (s *Store) Update(notes []resource.Notification, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Notifications = cloneNotifications(notes)
	s.snapshot.Unread = countUnread(notes)
	s.snapshot.HasData = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// SetSignedIn records whether the session holds a token. Signing out drops
// the previous user's notifications.
func (s *Store) SetSignedIn(signedIn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.SignedIn = signedIn
	if !signedIn {
		s.snapshot.Notifications = nil
		s.snapshot.Unread = 0
		s.snapshot.HasData = false
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Notifications = cloneNotifications(s.snapshot.Notifications)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func countUnread(notes []resource.Notification) int {
	n := 0
	for _, note := range notes {
		if !note.Read {
			n++
		}
	}
	return n
}

func cloneNotifications(items []resource.Notification) []resource.Notification {
	if len(items) == 0 {
		return nil
	}
	dup := make([]resource.Notification, len(items))
	copy(dup, items)
	return dup
}
