package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/solarops/internal/apitest"
	"github.com/five82/solarops/internal/bpm"
	"github.com/five82/solarops/internal/listquery"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newCatalog(t *testing.T, pageSize int) (*Catalog, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	client, err := bpm.NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Login(testContext(t), apitest.Email, apitest.Password)
	require.NoError(t, err)
	return NewCatalog(client, listquery.Pipeline{PageSize: pageSize}), srv
}

type stubDoer struct {
	body string
	err  error
	reqs []bpm.Request
}

func (s *stubDoer) Do(_ context.Context, req bpm.Request, dest any) error {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return s.err
	}
	if dest == nil || s.body == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.body), dest)
}

func (s *stubDoer) Download(context.Context, bpm.Request, io.Writer) (bpm.FileInfo, error) {
	return bpm.FileInfo{}, errors.New("not supported")
}

func TestList_ConcreteScenarios(t *testing.T) {
	cat, srv := newCatalog(t, 0)
	srv.Seed("leads",
		map[string]any{"name": "Alice", "status": "new"},
		map[string]any{"name": "Bob", "status": "won"},
	)
	ctx := testContext(t)

	page, err := cat.Leads.List(ctx, listquery.Query{Query: "ali", View: "all", Sort: listquery.Asc, SortBy: "name"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Alice", page.Items[0].Name)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, listquery.DefaultPageSize, page.PageSize)
	assert.Equal(t, 1, page.Pages)

	page, err = cat.Leads.List(ctx, listquery.Query{View: "won"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Bob", page.Items[0].Name)
	assert.Equal(t, 1, page.TotalCount)
}

func TestList_PaginatesLocally(t *testing.T) {
	cat, srv := newCatalog(t, 2)
	srv.Seed("stock",
		map[string]any{"sku": "P-1", "name": "Panel 400W", "quantity": 40},
		map[string]any{"sku": "P-2", "name": "Panel 430W", "quantity": 3},
		map[string]any{"sku": "I-1", "name": "Inverter 5kW", "quantity": 12},
		map[string]any{"sku": "R-1", "name": "Rail 4m", "quantity": 100},
		map[string]any{"sku": "C-1", "name": "Clamp", "quantity": 7},
	)
	ctx := testContext(t)

	q := listquery.Query{SortBy: "quantity", Sort: listquery.Desc, Page: 1}
	page, err := cat.Stock.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "I-1", page.Items[0].SKU)
	assert.Equal(t, "C-1", page.Items[1].SKU)

	q.Filters = []listquery.FilterClause{{Property: "quantity", Operator: listquery.OpLessThan, Value: 10}}
	q.Page = 0
	page, err = cat.Stock.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "C-1", page.Items[0].SKU)

	assert.Equal(t, 2, srv.Hits("GET /api/stock"), "every list call fetches the full collection")
}

func TestListAll_AcceptsEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"id":"a"},{"id":"b"}]`, 2},
		{"envelope", `{"items":[{"id":"a"}],"total":1}`, 1},
		{"empty", ``, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New[Lead](&stubDoer{body: tt.body}, "leads", LeadSchema, listquery.Pipeline{})
			recs, err := r.ListAll(context.Background())
			require.NoError(t, err)
			assert.Len(t, recs, tt.want)
		})
	}

	r := New[Lead](&stubDoer{body: `{"error":"nope"}`}, "leads", LeadSchema, listquery.Pipeline{})
	_, err := r.ListAll(context.Background())
	assert.ErrorContains(t, err, "unexpected payload")
}

func TestCRUD(t *testing.T) {
	cat, srv := newCatalog(t, 0)
	ctx := testContext(t)

	created, err := cat.Customers.Create(ctx, Customer{Name: "Dana Rivers", Email: "dana@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt == "")

	got, err := cat.Customers.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana Rivers", got.Name)

	got.Phone = "555-0100"
	updated, err := cat.Customers.Update(ctx, created.ID, got)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", updated.Phone)

	raw, err := cat.Customers.UpdateRaw(ctx, created.ID, json.RawMessage(`{"status":"active"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"active"`, string(mustField(t, raw, "status")))
	assert.Equal(t, "555-0100", srv.Records("customers")[0]["phone"])

	require.NoError(t, cat.Customers.Delete(ctx, created.ID))
	_, err = cat.Customers.Get(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, bpm.IsNotFound(err))
	assert.ErrorContains(t, err, "get customers")
}

func mustField(t *testing.T, rec json.RawMessage, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec, &m))
	return m[field]
}

func TestSingleRecordCallsRequireID(t *testing.T) {
	doer := &stubDoer{}
	r := New[Lead](doer, "leads", LeadSchema, listquery.Pipeline{})

	_, err := r.Get(context.Background(), " ")
	assert.ErrorContains(t, err, "id is required")
	assert.Error(t, r.Delete(context.Background(), ""))
	assert.Empty(t, doer.reqs)

	var nilRes *Resource[Lead]
	_, err = nilRes.ListAll(context.Background())
	assert.EqualError(t, err, "client is nil")
}

func TestErrorsKeepIdentity(t *testing.T) {
	doer := &stubDoer{err: bpm.ErrUnauthorized}
	r := New[Install](doer, "installs", InstallSchema, listquery.Pipeline{})

	_, err := r.List(context.Background(), listquery.Query{})
	assert.ErrorIs(t, err, bpm.ErrUnauthorized)
	assert.ErrorContains(t, err, "list installs")
}

func TestAddLogAndConvert(t *testing.T) {
	cat, srv := newCatalog(t, 0)
	srv.Seed("leads", map[string]any{"id": "l1", "name": "Sunny Roofs", "email": "sun@example.com", "status": "new"})
	srv.Seed("installs", map[string]any{"id": "i1", "address": "1 Elm St"})
	ctx := testContext(t)

	lead, err := cat.Leads.AddLog(ctx, "l1", LogEntry{Message: "called back", Author: "ops"})
	require.NoError(t, err)
	require.Len(t, lead.Logs, 1)
	assert.Equal(t, "called back", lead.Logs[0].Message)
	assert.NotEmpty(t, lead.Logs[0].CreatedAt)

	install, err := cat.Installs.AddLog(ctx, "i1", LogEntry{Message: "panels delivered"})
	require.NoError(t, err)
	assert.Len(t, install.Logs, 1)

	_, err = cat.Installs.AddLog(ctx, "i1", LogEntry{})
	assert.ErrorContains(t, err, "message is required")

	customer, err := cat.Leads.Convert(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Sunny Roofs", customer.Name)
	assert.Equal(t, "l1", customer.LeadID)

	won, err := cat.Leads.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "won", won.Status)
	assert.Len(t, srv.Records("customers"), 1)
}

func TestNotifications(t *testing.T) {
	cat, srv := newCatalog(t, 0)
	srv.Seed("notifications",
		map[string]any{"id": "n1", "title": "Install booked", "read": false},
		map[string]any{"id": "n2", "title": "Quote signed", "read": true},
		map[string]any{"id": "n3", "title": "Permit approved"},
	)
	ctx := testContext(t)

	unread, err := cat.Notifications.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n, err := cat.Notifications.MarkRead(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, n.Read)

	unread, err = cat.Notifications.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestFilesDownload(t *testing.T) {
	cat, srv := newCatalog(t, 0)
	srv.PutFile("quote-7", []byte("pdf bytes"))

	var buf bytes.Buffer
	info, err := cat.Files.Download(testContext(t), "quote-7", &buf)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", buf.String())
	assert.Equal(t, "quote-7.pdf", info.Filename)

	_, err = cat.Files.Download(testContext(t), "", &buf)
	assert.ErrorContains(t, err, "id is required")
}

func TestCatalogLookup(t *testing.T) {
	cat := NewCatalog(&stubDoer{}, listquery.Pipeline{PageSize: 7})

	l, err := cat.Lookup(" Leads ")
	require.NoError(t, err)
	assert.Equal(t, "leads", l.Name())
	assert.Equal(t, 7, l.PageSize())
	assert.Equal(t, LeadSchema.SearchFields, l.Schema().SearchFields)

	_, err = cat.Lookup("invoices")
	assert.ErrorIs(t, err, ErrUnknownResource)

	assert.Equal(t, []string{
		"customers", "events", "files", "installers", "installs",
		"leads", "notifications", "services", "stock",
	}, cat.Names())
	assert.Equal(t, "/api/stock", cat.Stock.Path())
}

func TestEntityHelpers(t *testing.T) {
	lead := Lead{CreatedAt: "2024-05-01T09:30:00Z"}
	assert.Equal(t, 2024, lead.Created().Year())
	assert.True(t, Lead{}.Created().IsZero())

	assert.Equal(t, time.May, Install{ScheduledFor: "2024-05-20"}.Scheduled().Month())
	assert.Equal(t, 14, Event{Start: "2024-06-01 14:00:00"}.Starts().Hour())

	assert.True(t, StockItem{Quantity: 3, ReorderLevel: 5}.LowStock())
	assert.False(t, StockItem{Quantity: 3}.LowStock())
}

func TestLatest(t *testing.T) {
	var latest Latest

	first, t1 := latest.Begin(context.Background())
	assert.True(t, t1.Current())

	second, t2 := latest.Begin(context.Background())
	assert.False(t, t1.Current())
	assert.True(t, t2.Current())
	assert.Greater(t, t2.Seq(), t1.Seq())
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.NoError(t, second.Err())

	latest.Stop()
	assert.False(t, t2.Current())
	assert.ErrorIs(t, second.Err(), context.Canceled)
	assert.False(t, Ticket{}.Current())
}

func TestLatest_DiscardsStaleListResult(t *testing.T) {
	cat, srv := newCatalog(t, 0)
	srv.Seed("events", map[string]any{"title": "Site survey"})

	release := srv.Hold("GET /api/events")
	defer release()
	var latest Latest

	type outcome struct {
		err       error
		published bool
	}
	firstDone := make(chan outcome, 1)
	go func() {
		ctx, ticket := latest.Begin(testContext(t))
		_, err := cat.Events.List(ctx, listquery.Query{})
		firstDone <- outcome{err: err, published: err == nil && ticket.Current()}
	}()
	require.Eventually(t, func() bool { return srv.Hits("GET /api/events") == 1 }, 2*time.Second, 5*time.Millisecond)

	// The second fetch is issued while the first request is still held.
	ctx, ticket := latest.Begin(testContext(t))
	type listed struct {
		page Page[Event]
		err  error
	}
	secondDone := make(chan listed, 1)
	go func() {
		page, err := cat.Events.List(ctx, listquery.Query{})
		secondDone <- listed{page: page, err: err}
	}()

	first := <-firstDone
	assert.ErrorIs(t, first.err, context.Canceled)
	assert.False(t, first.published)

	release()
	second := <-secondDone
	require.NoError(t, second.err)
	assert.True(t, ticket.Current())
	assert.Len(t, second.page.Items, 1)
}
