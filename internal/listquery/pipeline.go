package listquery

import (
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultPageSize is used when a Pipeline has no page size set.
const DefaultPageSize = 10

// Pipeline runs the query, view, filter, sort and paginate stages over an
// in-memory collection.
type Pipeline struct {
	PageSize int
}

// Size returns the effective page size.
func (p Pipeline) Size() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

// Apply filters, sorts and paginates records. The input slice is not modified.
func (p Pipeline) Apply(records []Record, q Query, schema Schema) Result {
	matched := Filter(records, q, schema)
	sorted := Sort(matched, q.SortBy, q.Sort)
	return Result{
		Items:      Paginate(sorted, q.Page, p.Size()),
		TotalCount: len(matched),
	}
}

// Filter applies the free-text, view and structured-filter stages in order.
func Filter(records []Record, q Query, schema Schema) []Record {
	statusField := schema.ViewField()
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if !MatchText(rec, q.Query, schema.SearchFields) {
			continue
		}
		if !MatchView(rec, q.View, statusField) {
			continue
		}
		if !MatchAll(rec, q.Filters) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

type keyed struct {
	rec Record
	key gjson.Result
}

// Sort returns a stably sorted copy of records ordered by the sortBy field.
// Equal keys keep their input order in both directions. An empty sortBy
// returns the records unchanged.
func Sort(records []Record, sortBy string, dir Direction) []Record {
	out := make([]Record, len(records))
	if strings.TrimSpace(sortBy) == "" {
		copy(out, records)
		return out
	}

	keys := make([]keyed, len(records))
	for i, rec := range records {
		keys[i] = keyed{rec: rec, key: lookup(rec, sortBy)}
	}
	slices.SortStableFunc(keys, func(a, b keyed) int {
		c := compareValues(a.key, b.key)
		if dir == Desc {
			return -c
		}
		return c
	})
	for i, k := range keys {
		out[i] = k.rec
	}
	return out
}

// compareValues orders numbers numerically, dates chronologically and
// everything else by string form. Absent and null sort as empty strings.
func compareValues(a, b gjson.Result) int {
	if a.Type == gjson.Number && b.Type == gjson.Number {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	}
	if a.Type == gjson.String && b.Type == gjson.String {
		if ta, ok := ParseTime(a.Str); ok {
			if tb, ok := ParseTime(b.Str); ok {
				return ta.Compare(tb)
			}
		}
	}
	sa, _ := textOf(a)
	sb, _ := textOf(b)
	return strings.Compare(sa, sb)
}

// Paginate returns the zero-based page of records. Negative pages are
// treated as the first page.
func Paginate(records []Record, page, pageSize int) []Record {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	if page >= Pages(len(records), pageSize) {
		return []Record{}
	}
	start := page * pageSize
	end := start + min(pageSize, len(records)-start)
	out := make([]Record, end-start)
	copy(out, records[start:end])
	return out
}
