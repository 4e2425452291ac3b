package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/five82/solarops/internal/bpm"
	"github.com/five82/solarops/internal/config"
	"github.com/five82/solarops/internal/listquery"
	"github.com/five82/solarops/internal/resource"
	"github.com/five82/solarops/internal/session"
	"github.com/five82/solarops/internal/state"
	"github.com/five82/solarops/internal/ui"
)

const defaultResource = "leads"

// App is the composition root shared by every command.
type App struct {
	Config   config.Config
	Log      logrus.FieldLogger
	Sessions *session.Store
	Client   *bpm.Client
	Catalog  *resource.Catalog
	State    *state.Store
}

// New opens the persisted session and builds the API client and catalog.
func New(cfg config.Config, log logrus.FieldLogger) (*App, error) {
	sessions, err := session.New(session.FileStorage{Path: cfg.SessionPath})
	if err != nil {
		return nil, err
	}

	opts := []bpm.Option{bpm.WithTimeout(cfg.RequestTimeout)}
	if log != nil {
		opts = append(opts, bpm.WithLogger(log))
	}
	client, err := bpm.NewClient(cfg.APIURL, sessions, opts...)
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	return &App{
		Config:   cfg,
		Log:      log,
		Sessions: sessions,
		Client:   client,
		Catalog:  resource.NewCatalog(client, listquery.Pipeline{PageSize: cfg.PageSize}),
		State:    &state.Store{},
	}, nil
}

// Browse runs the terminal browser on the named collection until the user
// quits or ctx is cancelled.
func (a *App) Browse(ctx context.Context, name string) error {
	if name == "" {
		name = defaultResource
	}
	lister, err := a.Catalog.Lookup(name)
	if err != nil {
		return err
	}
	if !a.Sessions.HasToken() {
		return fmt.Errorf("not signed in: run `solarops login` first")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := a.Sessions.Subscribe(ctx, a.Client, func(token string) {
		a.State.SetSignedIn(token != "")
	})
	defer sub.Unsubscribe()

	poller := &Poller{
		Store:    a.State,
		Feed:     a.Catalog.Notifications,
		Sessions: a.Sessions,
		Interval: a.Config.PollInterval,
		Log:      a.Log,
	}
	poller.Start(ctx)

	return ui.Run(ctx, ui.Options{
		Lister:   lister,
		Catalog:  a.Catalog,
		Store:    a.State,
		PollTick: a.Config.PollInterval,
	})
}
