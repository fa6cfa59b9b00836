package postgrest

import (
	"strconv"
	"strings"
	"time"
)

func eq(value string) string {
	return "eq." + value
}

func eqInt(value int64) string {
	return "eq." + strconv.FormatInt(value, 10)
}

func lt(value string) string {
	return "lt." + value
}

// quote wraps a value in double quotes for use inside in() lists and or()
// trees, where commas, dots and parentheses are reserved.
func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// anyColumnEq builds an or=() tree matching value against any of columns
func anyColumnEq(value string, columns ...string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + ".eq." + quote(value)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func inInts(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "in.(" + strings.Join(parts, ",") + ")"
}

// formatTime renders t for a timestamp column
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
