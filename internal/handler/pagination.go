package handler

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 200
	MaxLimit     = 1000
)

// ParseLimit reads ?limit=, falling back to DefaultLimit when it is missing,
// non-numeric or out of range.
func ParseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return limit
}
