package api

import (
	"time"

	"github.com/rubiojr/movieei/pkg/search"
)

// Search endpoint error messages.
const (
	MsgSearchTermRequired = "Search term is required"
	MsgConfigError        = "Server configuration error"
	MsgFetchFailed        = "Failed to fetch movies"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Live search socket messages.
const (
	MsgTypeSearch     = "search"
	MsgTypeLoadMore   = "load_more"
	MsgTypeRevalidate = "revalidate"
	MsgTypeInit       = "init"
	MsgTypeState      = "state"
	MsgTypeError      = "error"
)

type ClientMessage struct {
	Type string `json:"type"`
	Term string `json:"term,omitempty"`
}

type ServerMessage struct {
	Type  string           `json:"type"`
	State *search.Snapshot `json:"state,omitempty"`
	Error string           `json:"error,omitempty"`
}
