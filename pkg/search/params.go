package search

import (
	"errors"
	"net/url"

	"github.com/rubiojr/movieei/pkg/core"
)

// ErrMissingTerm is returned by ParseParams when no search term was given.
var ErrMissingTerm = errors.New("search term is required")

// Params are the proxy query parameters.
type Params struct {
	// Term is the search text (parameter "s"). Required.
	Term string

	// Page is forwarded verbatim to the upstream. Defaults to "1".
	Page string

	// Type is the upstream search type. Defaults to the caller supplied
	// default, or core.DefaultType.
	Type string
}

// ParseParams reads s, page and type from query parameters. The page and type
// are not validated; the upstream decides what it accepts.
func ParseParams(values url.Values, defaultType string) (Params, error) {
	if defaultType == "" {
		defaultType = core.DefaultType
	}
	params := Params{
		Term: values.Get("s"),
		Page: values.Get("page"),
		Type: values.Get("type"),
	}
	if params.Page == "" {
		params.Page = "1"
	}
	if params.Type == "" {
		params.Type = defaultType
	}
	if params.Term == "" {
		return params, ErrMissingTerm
	}
	return params, nil
}
