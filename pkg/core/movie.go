package core

import (
	"fmt"
	"strings"
)

// Search types accepted by the upstream API.
const (
	TypeMovie   = "movie"
	TypeSeries  = "series"
	TypeEpisode = "episode"
)

// DefaultType is used whenever a search does not specify a type.
const DefaultType = TypeMovie

// Movie is a single search hit as returned by the upstream API.
//
// Movies are passed through unmodified: the proxy never rewrites them and the
// accumulator only concatenates them. The identifier is expected to be unique
// within one result set, but nothing guarantees that across pages when the
// upstream data shifts between requests, so list consumers should key rows
// with ItemKey rather than ImdbID alone.
type Movie struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	ImdbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

// ItemKey returns a row key pairing the upstream identifier with the
// position of the movie in the accumulated list.
func (m Movie) ItemKey(index int) string {
	return fmt.Sprintf("%s-%d", m.ImdbID, index)
}

// HasPoster reports whether the upstream supplied a usable poster URL.
// The API uses the literal "N/A" when no poster exists.
func (m Movie) HasPoster() bool {
	return m.Poster != "" && !strings.EqualFold(m.Poster, "N/A")
}

// ValidType reports whether t is one of the search types the upstream knows.
func ValidType(t string) bool {
	switch t {
	case TypeMovie, TypeSeries, TypeEpisode:
		return true
	}
	return false
}
