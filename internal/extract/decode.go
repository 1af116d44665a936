package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// rowMap is one source database row, keyed by column name. Source rows
// mix types freely (integers stored as text, text stored as blobs), so
// every field read goes through a best-effort decode that degrades to an
// absent value instead of aborting the row.
type rowMap map[string]any

// str returns the first key whose value decodes to a non-empty string.
func (r rowMap) str(keys ...string) string {
	for _, key := range keys {
		if s := asString(r[key]); s != "" {
			return s
		}
	}
	return ""
}

// num returns the first key whose value decodes to a non-zero number.
// If every present value is zero, returns (0, true); zero is a legitimate
// timestamp/count, it just loses the fallback race.
func (r rowMap) num(keys ...string) (float64, bool) {
	var sawZero bool
	for _, key := range keys {
		f, ok := asFloat64(r[key])
		if !ok {
			continue
		}
		if f != 0 {
			return f, true
		}
		sawZero = true
	}
	if sawZero {
		return 0, true
	}
	return 0, false
}

// int64 is num truncated to an integer.
func (r rowMap) int64(keys ...string) (int64, bool) {
	f, ok := r.num(keys...)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// asString decodes a value as text. Blobs that are not valid UTF-8
// decode to "" — a malformed body degrades to an absent field rather
// than failing the row.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		if !utf8.Valid(t) {
			return ""
		}
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// asFloat64 decodes a value as a number, accepting numeric text.
func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	default:
		return 0, false
	}
}

// asInt64 decodes a value as an integer, truncating fractional input.
func asInt64(v any) (int64, bool) {
	f, ok := asFloat64(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// asBool decodes a value as a flag: any non-zero number or "true" text.
func asBool(v any) bool {
	if f, ok := asFloat64(v); ok {
		return f != 0
	}
	if s, ok := v.(string); ok {
		return strings.EqualFold(s, "true")
	}
	return false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
