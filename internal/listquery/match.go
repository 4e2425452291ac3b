package listquery

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Match is the outcome of evaluating one clause against one record.
type Match int

const (
	// NoMatch means the record fails the clause.
	NoMatch Match = iota
	// Match means the record satisfies the clause.
	Matched
	// Indeterminate means the operands could not be compared, e.g. a
	// non-numeric value under greater-than. It never satisfies a clause.
	Indeterminate
)

func (m Match) String() string {
	switch m {
	case Matched:
		return "match"
	case NoMatch:
		return "no-match"
	default:
		return "indeterminate"
	}
}

// Satisfied reports whether the record passes.
func (m Match) Satisfied() bool {
	return m == Matched
}

func matchOf(ok bool) Match {
	if ok {
		return Matched
	}
	return NoMatch
}

func (m Match) negate() Match {
	switch m {
	case Matched:
		return NoMatch
	case NoMatch:
		return Matched
	}
	return m
}

// Evaluate applies a single clause to a record.
func Evaluate(rec Record, c FilterClause) Match {
	field := lookup(rec, c.Property)

	switch c.Operator {
	case OpIsBlank:
		return matchOf(isBlank(field))
	case OpIsPresent:
		return matchOf(!isBlank(field))
	}
	if !field.Exists() {
		return NoMatch
	}

	switch c.Operator {
	case OpEquals:
		return strictEqual(field, c.Value)
	case OpNotEquals:
		return strictEqual(field, c.Value).negate()
	case OpContains:
		return textTest(field, c.Value, strings.Contains)
	case OpNotContains:
		return textTest(field, c.Value, strings.Contains).negate()
	case OpStartsWith:
		return textTest(field, c.Value, strings.HasPrefix)
	case OpEndsWith:
		return textTest(field, c.Value, strings.HasSuffix)
	case OpGreaterThan, OpLessThan:
		have, ok := numberOf(field)
		want, ok2 := operandNumber(c.Value)
		if !ok || !ok2 {
			return Indeterminate
		}
		if c.Operator == OpGreaterThan {
			return matchOf(have > want)
		}
		return matchOf(have < want)
	case OpIsAfter, OpIsBefore:
		have, ok := timeOf(field)
		want, ok2 := operandTime(c.Value)
		if !ok || !ok2 {
			return Indeterminate
		}
		if c.Operator == OpIsAfter {
			return matchOf(have.After(want))
		}
		return matchOf(have.Before(want))
	}
	return Indeterminate
}

func strictEqual(field gjson.Result, value any) Match {
	switch v := normalize(value).(type) {
	case nil:
		return matchOf(field.Type == gjson.Null)
	case bool:
		return matchOf((v && field.Type == gjson.True) || (!v && field.Type == gjson.False))
	case float64:
		return matchOf(field.Type == gjson.Number && field.Num == v)
	case string:
		return matchOf(field.Type == gjson.String && field.Str == v)
	}
	return Indeterminate
}

func textTest(field gjson.Result, value any, test func(s, sub string) bool) Match {
	have, ok := textOf(field)
	if !ok {
		return NoMatch
	}
	want, ok := operandText(value)
	if !ok {
		return Indeterminate
	}
	return matchOf(test(fold(have), fold(want)))
}

// MatchAll reports whether the record satisfies every clause.
func MatchAll(rec Record, clauses []FilterClause) bool {
	for _, c := range clauses {
		if !Evaluate(rec, c).Satisfied() {
			return false
		}
	}
	return true
}

// MatchText reports whether any search field contains the query, case-folded.
// An empty query matches everything.
func MatchText(rec Record, query string, fields []string) bool {
	if query == "" {
		return true
	}
	needle := fold(query)
	for _, name := range fields {
		text, ok := textOf(lookup(rec, name))
		if !ok {
			continue
		}
		if strings.Contains(fold(text), needle) {
			return true
		}
	}
	return false
}

// MatchView reports whether the record's status field equals view exactly.
// An empty view or ViewAll matches everything.
func MatchView(rec Record, view, statusField string) bool {
	if view == "" || view == ViewAll {
		return true
	}
	field := lookup(rec, statusField)
	return field.Type == gjson.String && field.Str == view
}
