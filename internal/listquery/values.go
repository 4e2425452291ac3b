package listquery

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339 timestamps, naive date-times and bare dates.
// Values without a zone are read as UTC. The second result is false when
// value matches none of them.
func ParseTime(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// fold case-folds s. Casers carry state, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func lookup(rec Record, field string) gjson.Result {
	return gjson.GetBytes(rec, field)
}

func isBlank(r gjson.Result) bool {
	if !r.Exists() || r.Type == gjson.Null {
		return true
	}
	return r.Type == gjson.String && r.Str == ""
}

// textOf returns the string form of a field, or false for absent and null.
func textOf(r gjson.Result) (string, bool) {
	if !r.Exists() || r.Type == gjson.Null {
		return "", false
	}
	if r.Type == gjson.String {
		return r.Str, true
	}
	return r.Raw, true
}

func numberOf(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return f, err == nil
	}
	return 0, false
}

func timeOf(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.String:
		return ParseTime(r.Str)
	case gjson.Number:
		return time.UnixMilli(int64(r.Num)), true
	}
	return time.Time{}, false
}

// normalize maps Go operand values onto nil, bool, float64, string or time.Time.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, float64, string, time.Time:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return v
}

func operandText(v any) (string, bool) {
	switch x := normalize(v).(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	default:
		return fmt.Sprint(x), true
	}
}

func operandNumber(v any) (float64, bool) {
	switch x := normalize(v).(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func operandTime(v any) (time.Time, bool) {
	switch x := normalize(v).(type) {
	case time.Time:
		return x, true
	case string:
		return ParseTime(x)
	case float64:
		return time.UnixMilli(int64(x)), true
	}
	return time.Time{}, false
}
