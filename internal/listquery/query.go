package listquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Record is one opaque JSON object returned by a list endpoint.
type Record = json.RawMessage

// Operator names a structured filter comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not-equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not-contains"
	OpStartsWith  Operator = "starts-with"
	OpEndsWith    Operator = "ends-with"
	OpGreaterThan Operator = "greater-than"
	OpLessThan    Operator = "less-than"
	OpIsAfter     Operator = "is-after"
	OpIsBefore    Operator = "is-before"
	OpIsBlank     Operator = "is-blank"
	OpIsPresent   Operator = "is-present"
)

// Operators lists the full operator vocabulary in display order.
var Operators = []Operator{
	OpEquals, OpNotEquals,
	OpContains, OpNotContains, OpStartsWith, OpEndsWith,
	OpGreaterThan, OpLessThan,
	OpIsAfter, OpIsBefore,
	OpIsBlank, OpIsPresent,
}

// ErrInvalidOperator is returned for operator names outside the vocabulary.
var ErrInvalidOperator = errors.New("invalid operator")

// ParseOperator resolves a canonical operator name.
func ParseOperator(name string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Operators {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperator, name)
}

// Unary reports whether the operator ignores its value operand.
func (o Operator) Unary() bool {
	return o == OpIsBlank || o == OpIsPresent
}

// FieldType is the declared type of a record field.
type FieldType string

const (
	TypeText   FieldType = "text"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
)

var applicable = map[FieldType]map[Operator]bool{
	TypeText: {
		OpEquals: true, OpNotEquals: true,
		OpContains: true, OpNotContains: true, OpStartsWith: true, OpEndsWith: true,
		OpIsBlank: true, OpIsPresent: true,
	},
	TypeNumber: {
		OpEquals: true, OpNotEquals: true,
		OpGreaterThan: true, OpLessThan: true,
		OpIsBlank: true, OpIsPresent: true,
	},
	TypeDate: {
		OpEquals: true, OpNotEquals: true,
		OpIsAfter: true, OpIsBefore: true,
		OpIsBlank: true, OpIsPresent: true,
	},
}

// Schema describes the fields of one entity that the pipeline inspects.
type Schema struct {
	// SearchFields are matched by the free-text query.
	SearchFields []string
	// StatusField is compared against Query.View. Defaults to "status".
	StatusField string
	// Types declares field types. Undeclared fields are text.
	Types map[string]FieldType
}

const defaultStatusField = "status"

// ViewField returns the field compared against Query.View.
func (s Schema) ViewField() string {
	if strings.TrimSpace(s.StatusField) == "" {
		return defaultStatusField
	}
	return s.StatusField
}

// SummaryFields returns the fields shown in one-line summaries: "id", the
// search fields in order, and the view field last. At most limit fields are
// returned when limit is positive; a limit of 1 keeps only "id".
func (s Schema) SummaryFields(limit int) []string {
	view := s.ViewField()
	fields := []string{"id"}
	for _, f := range s.SearchFields {
		if limit > 0 && len(fields) >= limit-1 {
			break
		}
		if f != view && f != "id" && !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	fields = append(fields, view)
	if limit > 0 && len(fields) > limit {
		fields = fields[:limit]
	}
	return fields
}

// TypeOf returns the declared type of a field.
func (s Schema) TypeOf(field string) FieldType {
	if t, ok := s.Types[field]; ok {
		return t
	}
	return TypeText
}

// Validate checks that the clause's operator applies to the property's type.
func (s Schema) Validate(c FilterClause) error {
	if strings.TrimSpace(c.Property) == "" {
		return errors.New("filter property is required")
	}
	if _, err := ParseOperator(string(c.Operator)); err != nil {
		return err
	}
	typ := s.TypeOf(c.Property)
	if !applicable[typ][c.Operator] {
		return fmt.Errorf("operator %s does not apply to %s field %q", c.Operator, typ, c.Property)
	}
	if !c.Operator.Unary() && c.Value == nil {
		return fmt.Errorf("operator %s requires a value", c.Operator)
	}
	return nil
}

// Coerce converts string operands of number fields to float64 so that strict
// equality against JSON numbers works for values typed on a command line.
func (s Schema) Coerce(c FilterClause) FilterClause {
	str, ok := c.Value.(string)
	if !ok || s.TypeOf(c.Property) != TypeNumber {
		return c
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		c.Value = f
	}
	return c
}

// FilterClause is one structured condition of a list query.
type FilterClause struct {
	Property string   `json:"property"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

func (c FilterClause) String() string {
	if c.Operator.Unary() {
		return fmt.Sprintf("%s %s", c.Property, c.Operator)
	}
	return fmt.Sprintf("%s %s %v", c.Property, c.Operator, c.Value)
}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts asc/desc (and their long forms); empty means asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// ViewAll disables the view filter.
const ViewAll = "all"

// Query describes one list request.
type Query struct {
	Query   string         `json:"query"`
	Filters []FilterClause `json:"filters"`
	Sort    Direction      `json:"sort"`
	SortBy  string         `json:"sortBy"`
	Page    int            `json:"page"`
	View    string         `json:"view,omitempty"`
}

// Result is one page of a list query.
type Result struct {
	Items      []Record `json:"items"`
	TotalCount int      `json:"totalCount"`
}

// Pages returns the number of non-empty pages for total records.
func Pages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total-1)/pageSize + 1
}
