package ui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/table"
	"github.com/tidwall/gjson"

	"github.com/five82/solarops/internal/listquery"
)

const (
	maxColumns     = 6
	minColumnWidth = 6
)

// columnsFor picks the table columns for a collection.
func columnsFor(schema listquery.Schema) []string {
	return schema.SummaryFields(maxColumns)
}

func columnWidths(n, total int) []int {
	if n == 0 {
		return nil
	}
	w := max((total-2*n)/n, minColumnWidth)
	widths := make([]int, n)
	for i := range widths {
		widths[i] = w
	}
	return widths
}

// refreshTable rebuilds the table from the current page. Rows are cleared
// before the columns change so the table never renders a row wider than its
// column set.
func (m *Model) refreshTable() {
	widths := columnWidths(len(m.columns), m.width)
	cols := make([]table.Column, len(m.columns))
	for i, name := range m.columns {
		title := name
		if name == m.query.SortBy {
			title += " " + sortArrow(m.query.Sort)
		}
		cols[i] = table.Column{Title: title, Width: widths[i]}
	}

	rows := make([]table.Row, 0, len(m.result.Items))
	for _, rec := range m.result.Items {
		row := make(table.Row, len(m.columns))
		for i, name := range m.columns {
			row[i] = cellText(gjson.GetBytes(rec, name))
		}
		rows = append(rows, row)
	}

	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
}

func cellText(r gjson.Result) string {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return ""
	case r.IsArray():
		return fmt.Sprintf("[%d]", len(r.Array()))
	case r.IsObject():
		return "{…}"
	}
	return r.String()
}

func sortArrow(dir listquery.Direction) string {
	if dir == listquery.Desc {
		return "▼"
	}
	return "▲"
}

// viewValues lists the distinct string values of field, led by ViewAll.
func viewValues(records []listquery.Record, field string) []string {
	seen := map[string]bool{}
	var values []string
	for _, rec := range records {
		v := gjson.GetBytes(rec, field)
		if v.Type != gjson.String || v.Str == "" || seen[v.Str] {
			continue
		}
		seen[v.Str] = true
		values = append(values, v.Str)
	}
	slices.Sort(values)
	return append([]string{listquery.ViewAll}, values...)
}

// nextValue returns the entry after current, wrapping around. An unknown
// current selects the first entry.
func nextValue(values []string, current string) string {
	if len(values) == 0 {
		return current
	}
	i := slices.Index(values, current)
	return values[(i+1)%len(values)]
}
