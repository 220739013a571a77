package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MoviesPath is the proxy route page keys render to.
const MoviesPath = "/api/movies"

// Page is one fetched response from the search API.
//
// TotalResults is kept as the numeric string the upstream sends; use Total to
// read it. A page with Response "False" is a logical failure (for example
// "Movie not found!") and carries its message in Error.
type Page struct {
	Search       []Movie `json:"Search,omitempty"`
	TotalResults string  `json:"totalResults,omitempty"`
	Response     string  `json:"Response"`
	Error        string  `json:"Error,omitempty"`
}

// Failed reports whether the upstream flagged this page as a failure.
func (p *Page) Failed() bool {
	return p != nil && p.Response == "False"
}

// Total parses TotalResults. Missing or malformed values count as zero.
func (p *Page) Total() int {
	if p == nil || p.TotalResults == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.TotalResults))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// PageKey addresses one page of one search. Keys of different queries never
// collide, so a new query is a disjoint cache namespace.
type PageKey struct {
	Query string
	Page  int
	Type  string
}

// String renders the key as the proxy request path, e.g.
// /api/movies?s=star+wars&page=2&type=movie
func (k PageKey) String() string {
	t := k.Type
	if t == "" {
		t = DefaultType
	}
	return fmt.Sprintf("%s?s=%s&page=%d&type=%s", MoviesPath, url.QueryEscape(k.Query), k.Page, url.QueryEscape(t))
}
