package search

import "github.com/rubiojr/movieei/pkg/core"

// Results is the visible projection of the pages fetched so far.
type Results struct {
	Movies       []core.Movie
	TotalResults int
	HasMore      bool
}

// Accumulate flattens pages in order. The total comes from the first page
// only; HasMore is false until a page with a positive total has arrived, once
// every announced result is listed, and after a page the upstream flagged as
// failed.
func Accumulate(pages []*core.Page) Results {
	res := Results{Movies: []core.Movie{}}
	if len(pages) == 0 {
		return res
	}
	failed := false
	for _, p := range pages {
		if p == nil {
			continue
		}
		failed = failed || p.Failed()
		res.Movies = append(res.Movies, p.Search...)
	}
	res.TotalResults = pages[0].Total()
	res.HasMore = !failed && res.TotalResults > 0 && len(res.Movies) < res.TotalResults
	return res
}
