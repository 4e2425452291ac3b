package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/five82/solarops/internal/bpm"
	"github.com/five82/solarops/internal/listquery"
)

// ErrUnknownResource is returned by Catalog.Lookup for names it does not know.
var ErrUnknownResource = errors.New("unknown resource")

// Doer sends API requests. *bpm.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req bpm.Request, dest any) error
	Download(ctx context.Context, req bpm.Request, w io.Writer) (bpm.FileInfo, error)
}

// Page is one page of typed list results.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Pages      int `json:"pages"`
}

// Resource is the client for one backend collection at /api/<name>.
type Resource[T any] struct {
	name     string
	path     string
	schema   listquery.Schema
	doer     Doer
	pipeline listquery.Pipeline
}

// New builds a Resource for the collection called name.
func New[T any](doer Doer, name string, schema listquery.Schema, pipeline listquery.Pipeline) *Resource[T] {
	return &Resource[T]{
		name:     name,
		path:     "/api/" + strings.Trim(name, "/"),
		schema:   schema,
		doer:     doer,
		pipeline: pipeline,
	}
}

// Name returns the collection name, e.g. "leads".
func (r *Resource[T]) Name() string { return r.name }

// Path returns the collection path, e.g. "/api/leads".
func (r *Resource[T]) Path() string { return r.path }

// Schema returns the field schema used by the list pipeline.
func (r *Resource[T]) Schema() listquery.Schema { return r.schema }

// PageSize returns the effective page size of List.
func (r *Resource[T]) PageSize() int { return r.pipeline.Size() }

// ListAll fetches the whole unfiltered collection. The API may answer with a
// bare array or with {"items": [...]}.
func (r *Resource[T]) ListAll(ctx context.Context) ([]listquery.Record, error) {
	if r == nil || r.doer == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var raw json.RawMessage
	if err := r.doer.Do(ctx, bpm.Request{Method: http.MethodGet, Path: r.path}, &raw); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.name, err)
	}
	return splitRecords(r.name, raw)
}

func splitRecords(name string, raw json.RawMessage) ([]listquery.Record, error) {
	doc := gjson.ParseBytes(raw)
	switch {
	case len(raw) == 0 || doc.Type == gjson.Null:
		return []listquery.Record{}, nil
	case doc.IsArray():
	case doc.Get("items").IsArray():
		doc = doc.Get("items")
	default:
		return nil, fmt.Errorf("list %s: unexpected payload %.40q", name, string(raw))
	}
	elems := doc.Array()
	out := make([]listquery.Record, 0, len(elems))
	for _, e := range elems {
		out = append(out, listquery.Record(e.Raw))
	}
	return out, nil
}

// All fetches the whole collection decoded into T.
func (r *Resource[T]) All(ctx context.Context) ([]T, error) {
	records, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](r.name, records)
}

func decodeAll[T any](name string, records []listquery.Record) ([]T, error) {
	items := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", name, err)
		}
		items = append(items, v)
	}
	return items, nil
}

// Query fetches the collection and runs it through the list pipeline,
// returning raw records.
func (r *Resource[T]) Query(ctx context.Context, q listquery.Query) (listquery.Result, error) {
	records, err := r.ListAll(ctx)
	if err != nil {
		return listquery.Result{}, err
	}
	return r.pipeline.Apply(records, q, r.schema), nil
}

// List is Query with the page decoded into T.
func (r *Resource[T]) List(ctx context.Context, q listquery.Query) (Page[T], error) {
	res, err := r.Query(ctx, q)
	if err != nil {
		return Page[T]{}, err
	}
	items, err := decodeAll[T](r.name, res.Items)
	if err != nil {
		return Page[T]{}, err
	}
	page := q.Page
	if page < 0 {
		page = 0
	}
	size := r.pipeline.Size()
	return Page[T]{
		Items:      items,
		TotalCount: res.TotalCount,
		Page:       page,
		PageSize:   size,
		Pages:      listquery.Pages(res.TotalCount, size),
	}, nil
}

func byID(id string) url.Values {
	return url.Values{"id": {id}}
}

// Get fetches one record by id.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	err := r.call(ctx, "get", bpm.Request{Method: http.MethodGet, Path: r.path, Query: byID(id)}, &v)
	return v, err
}

// GetRaw is Get without decoding.
func (r *Resource[T]) GetRaw(ctx context.Context, id string) (listquery.Record, error) {
	var raw json.RawMessage
	err := r.call(ctx, "get", bpm.Request{Method: http.MethodGet, Path: r.path, Query: byID(id)}, &raw)
	return raw, err
}

// Create posts v and returns the record the API stored.
func (r *Resource[T]) Create(ctx context.Context, v T) (T, error) {
	var out T
	err := r.call(ctx, "create", bpm.Request{Method: http.MethodPost, Path: r.path, Body: v}, &out)
	return out, err
}

// CreateRaw posts an arbitrary JSON document.
func (r *Resource[T]) CreateRaw(ctx context.Context, doc json.RawMessage) (listquery.Record, error) {
	var out json.RawMessage
	err := r.call(ctx, "create", bpm.Request{Method: http.MethodPost, Path: r.path, Body: doc}, &out)
	return out, err
}

// Update replaces the fields of record id with v.
func (r *Resource[T]) Update(ctx context.Context, id string, v T) (T, error) {
	var out T
	err := r.call(ctx, "update", bpm.Request{Method: http.MethodPut, Path: r.path, Query: byID(id), Body: v}, &out)
	return out, err
}

// UpdateRaw sends a partial JSON document; fields it omits are left alone.
func (r *Resource[T]) UpdateRaw(ctx context.Context, id string, doc json.RawMessage) (listquery.Record, error) {
	var out json.RawMessage
	err := r.call(ctx, "update", bpm.Request{Method: http.MethodPut, Path: r.path, Query: byID(id), Body: doc}, &out)
	return out, err
}

// Delete removes record id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.call(ctx, "delete", bpm.Request{Method: http.MethodDelete, Path: r.path, Query: byID(id)}, nil)
}

// Action calls the sub-resource /api/<name>/<sub>?id=<id>.
func (r *Resource[T]) Action(ctx context.Context, method, sub, id string, body, dest any) error {
	req := bpm.Request{Method: method, Path: r.path + "/" + strings.Trim(sub, "/"), Query: byID(id), Body: body}
	return r.call(ctx, sub, req, dest)
}

func (r *Resource[T]) call(ctx context.Context, verb string, req bpm.Request, dest any) error {
	if r == nil || r.doer == nil {
		return fmt.Errorf("client is nil")
	}
	if req.Query != nil && strings.TrimSpace(req.Query.Get("id")) == "" {
		return fmt.Errorf("%s %s: id is required", verb, r.name)
	}
	if err := r.doer.Do(ctx, req, dest); err != nil {
		return fmt.Errorf("%s %s: %w", verb, r.name, err)
	}
	return nil
}

// Lister is the untyped view of a Resource used by the CLI and the browser.
type Lister interface {
	Name() string
	Schema() listquery.Schema
	PageSize() int
	ListAll(ctx context.Context) ([]listquery.Record, error)
	Query(ctx context.Context, q listquery.Query) (listquery.Result, error)
	GetRaw(ctx context.Context, id string) (listquery.Record, error)
	CreateRaw(ctx context.Context, doc json.RawMessage) (listquery.Record, error)
	UpdateRaw(ctx context.Context, id string, doc json.RawMessage) (listquery.Record, error)
	Delete(ctx context.Context, id string) error
}
