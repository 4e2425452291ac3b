package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/five82/solarops/internal/bpm"
	"github.com/five82/solarops/internal/listquery"
)

// Leads is the lead collection plus its pipeline actions.
type Leads struct{ *Resource[Lead] }

// AddLog appends an entry to the lead's activity log.
func (l Leads) AddLog(ctx context.Context, id string, entry LogEntry) (Lead, error) {
	return addLog(ctx, l.Resource, id, entry)
}

// Convert turns a lead into a customer and returns the new customer.
func (l Leads) Convert(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := l.Action(ctx, http.MethodPost, "convert", id, nil, &c)
	return c, err
}

// Installs is the install collection.
type Installs struct{ *Resource[Install] }

// AddLog appends an entry to the install's activity log.
func (i Installs) AddLog(ctx context.Context, id string, entry LogEntry) (Install, error) {
	return addLog(ctx, i.Resource, id, entry)
}

// Customers is the customer collection.
type Customers struct{ *Resource[Customer] }

// AddLog appends an entry to the customer's activity log.
func (c Customers) AddLog(ctx context.Context, id string, entry LogEntry) (Customer, error) {
	return addLog(ctx, c.Resource, id, entry)
}

func addLog[T any](ctx context.Context, r *Resource[T], id string, entry LogEntry) (T, error) {
	var out T
	if strings.TrimSpace(entry.Message) == "" {
		return out, fmt.Errorf("log %s: message is required", r.name)
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	err := r.Action(ctx, http.MethodPost, "log", id, entry, &out)
	return out, err
}

// Files is the document collection.
type Files struct{ *Resource[File] }

// Download streams the content of file id into w.
func (f Files) Download(ctx context.Context, id string, w io.Writer) (bpm.FileInfo, error) {
	if f.Resource == nil || f.doer == nil {
		return bpm.FileInfo{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return bpm.FileInfo{}, fmt.Errorf("download %s: id is required", f.name)
	}
	info, err := f.doer.Download(ctx, bpm.Request{Method: http.MethodGet, Path: f.path + "/download", Query: byID(id)}, w)
	if err != nil {
		return bpm.FileInfo{}, fmt.Errorf("download %s: %w", f.name, err)
	}
	return info, nil
}

// Notifications is the current user's notification feed.
type Notifications struct{ *Resource[Notification] }

// MarkRead flags notification id as read.
func (n Notifications) MarkRead(ctx context.Context, id string) (Notification, error) {
	var out Notification
	err := n.Action(ctx, http.MethodPost, "read", id, nil, &out)
	return out, err
}

// Unread counts notifications not yet marked read. A missing read flag
// counts as unread.
func (n Notifications) Unread(ctx context.Context) (int, error) {
	records, err := n.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, rec := range records {
		if !gjson.GetBytes(rec, "read").Bool() {
			unread++
		}
	}
	return unread, nil
}

// Catalog holds a client for every backend collection.
type Catalog struct {
	Leads         Leads
	Installs      Installs
	Customers     Customers
	Services      *Resource[Service]
	Stock         *Resource[StockItem]
	Files         Files
	Notifications Notifications
	Installers    *Resource[Installer]
	Events        *Resource[Event]

	byName map[string]Lister
}

// NewCatalog wires every collection to doer, sharing one pipeline.
func NewCatalog(doer Doer, pipeline listquery.Pipeline) *Catalog {
	c := &Catalog{
		Leads:         Leads{New[Lead](doer, "leads", LeadSchema, pipeline)},
		Installs:      Installs{New[Install](doer, "installs", InstallSchema, pipeline)},
		Customers:     Customers{New[Customer](doer, "customers", CustomerSchema, pipeline)},
		Services:      New[Service](doer, "services", ServiceSchema, pipeline),
		Stock:         New[StockItem](doer, "stock", StockSchema, pipeline),
		Files:         Files{New[File](doer, "files", FileSchema, pipeline)},
		Notifications: Notifications{New[Notification](doer, "notifications", NotificationSchema, pipeline)},
		Installers:    New[Installer](doer, "installers", InstallerSchema, pipeline),
		Events:        New[Event](doer, "events", EventSchema, pipeline),
	}
	c.byName = map[string]Lister{}
	for _, l := range []Lister{
		c.Leads, c.Installs, c.Customers, c.Services, c.Stock,
		c.Files, c.Notifications, c.Installers, c.Events,
	} {
		c.byName[l.Name()] = l
	}
	return c
}

// Lookup returns the collection called name. Matching ignores case.
func (c *Catalog) Lookup(name string) (Lister, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if l, ok := c.byName[key]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownResource, name, strings.Join(c.Names(), ", "))
}

// Names lists the collection names in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
