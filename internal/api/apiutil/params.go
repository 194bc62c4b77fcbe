package apiutil

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// PathID parses a positive integer path value such as {id}.
func PathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	return positive(raw, name)
}

// QueryString returns a trimmed query parameter.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// QueryLimit reads a positive page size from key, falling back to def when
// absent and clamping to max.
func QueryLimit(r *http.Request, key string, def, max int64) (int64, error) {
	raw := QueryString(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := positive(raw, key)
	if err != nil {
		return 0, err
	}
	return min(n, max), nil
}

func positive(raw, name string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// NullInt64 maps an optional id onto a nullable column.
func NullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
