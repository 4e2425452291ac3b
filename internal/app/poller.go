package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/solarops/internal/resource"
	"github.com/five82/solarops/internal/session"
	"github.com/five82/solarops/internal/state"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// Feed supplies the signed-in user's notifications.
type Feed interface {
	All(ctx context.Context) ([]resource.Notification, error)
}

// Poller refreshes the notification snapshot in the background.
type Poller struct {
	Store    *state.Store
	Feed     Feed
	Sessions *session.Store
	Interval time.Duration
	Log      logrus.FieldLogger
}

// Start launches the polling goroutine and returns immediately. Polling stops
// when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		for {
			p.Refresh(ctx)
			wait := calculateBackoff(p.Store.Snapshot().ConsecutiveFailures, interval)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// Refresh polls once. Nothing is fetched while signed out, so an expired
// session does not trigger a refresh attempt every tick.
func (p *Poller) Refresh(ctx context.Context) {
	if p.Sessions != nil && !p.Sessions.HasToken() {
		p.Store.SetSignedIn(false)
		return
	}
	notes, err := p.Feed.All(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	p.Store.Update(notes, err)
	if err != nil && p.Log != nil {
		p.Log.WithError(err).Warn("notification poll failed")
	}
}

// calculateBackoff doubles the poll interval for each consecutive failure, up
// to maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
