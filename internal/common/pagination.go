package common

import (
	"net/http"
	"strconv"
)

// Page describes one window of a list response.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// ParsePage reads limit and offset query parameters. Limit falls back to def and is capped at max.
func ParsePage(r *http.Request, def, max int) Page {
	q := r.URL.Query()
	page := Page{Limit: intParam(q.Get("limit"), def), Offset: intParam(q.Get("offset"), 0)}
	if page.Limit <= 0 {
		page.Limit = def
	}
	if max > 0 && page.Limit > max {
		page.Limit = max
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

func intParam(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
