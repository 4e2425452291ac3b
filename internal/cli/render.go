package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tidwall/gjson"

	"github.com/five82/solarops/internal/config"
	"github.com/five82/solarops/internal/listquery"
)

const summaryColumns = 7

// renderer writes command results as go-pretty tables or indented JSON.
type renderer struct {
	w      io.Writer
	format string
}

func (r renderer) json() bool { return r.format == config.OutputJSON }

// page renders one page of a list query.
func (r renderer) page(schema listquery.Schema, res listquery.Result, q listquery.Query, pageSize int) error {
	if r.json() {
		return r.encode(res)
	}

	pages := listquery.Pages(res.TotalCount, pageSize)
	if len(res.Items) == 0 {
		_, _ = fmt.Fprintf(r.w, "(0 of %d records)\n", res.TotalCount)
		return nil
	}

	cols := schema.SummaryFields(summaryColumns)
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, rec := range res.Items {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(gjson.GetBytes(rec, col))
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(r.w, "page %d/%d, %d records\n", q.Page+1, pages, res.TotalCount)
	return nil
}

// record renders a single JSON object as a two-column field/value table.
func (r renderer) record(rec json.RawMessage) error {
	if r.json() {
		return r.encode(rec)
	}

	doc := gjson.ParseBytes(rec)
	if !doc.IsObject() {
		_, _ = fmt.Fprintln(r.w, doc.String())
		return nil
	}

	var keys []string
	doc.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	if i := slices.Index(keys, "id"); i > 0 {
		keys = append([]string{"id"}, slices.Delete(keys, i, i+1)...)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"field", "value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, formatValue(doc.Get(gjson.Escape(k)))})
	}
	t.Render()
	return nil
}

// fields renders ordered label/value pairs.
func (r renderer) fields(pairs [][2]string) error {
	if r.json() {
		out := make(map[string]string, len(pairs))
		for _, p := range pairs {
			out[p[0]] = p[1]
		}
		return r.encode(out)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	for _, p := range pairs {
		t.AppendRow(table.Row{p[0], p[1]})
	}
	t.Render()
	return nil
}

func (r renderer) encode(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.IsArray():
		n := len(v.Array())
		if n == 1 {
			return "1 item"
		}
		return fmt.Sprintf("%d items", n)
	case v.IsObject():
		return v.Raw
	}
	return v.String()
}
