package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/movieei/pkg/auth"
	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/log"
	"github.com/rubiojr/movieei/pkg/omdb"
	"github.com/rubiojr/movieei/pkg/search"
)

// DefaultCacheMaxAge is the Cache-Control max-age of successful searches.
const DefaultCacheMaxAge = 5 * time.Minute

type Options struct {
	// Upstream is the search API client. It may be nil or unconfigured, in
	// which case searches fail with a configuration error.
	Upstream *omdb.Client

	CacheMaxAge time.Duration
	DefaultType string

	// Search configures the live search sessions opened over WebSocket.
	Search search.Options

	// Verifier checks logins. Defaults to the demo static verifier.
	Verifier auth.Verifier

	// AllowedOrigins limits the browser origins that may open the live
	// search socket. Empty allows any origin, matching the CORS policy.
	AllowedOrigins []string
}

type Server struct {
	upstream    atomic.Pointer[omdb.Client]
	cacheMaxAge time.Duration
	defaultType string
	search      search.Options
	verifier    auth.Verifier
	upgrader    websocket.Upgrader
	logger      *log.Logger
}

func NewServer(opts Options) *Server {
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = DefaultCacheMaxAge
	}
	if opts.DefaultType == "" {
		opts.DefaultType = core.DefaultType
	}
	if opts.Verifier == nil {
		opts.Verifier = auth.NewStaticVerifier("", "", "", "")
	}

	s := &Server{
		cacheMaxAge: opts.CacheMaxAge,
		defaultType: opts.DefaultType,
		search:      opts.Search,
		verifier:    opts.Verifier,
		upgrader:    newUpgrader(opts.AllowedOrigins),
		logger:      log.ForService("server"),
	}
	s.upstream.Store(opts.Upstream)
	return s
}

// SetUpstream swaps the upstream client used by new requests.
func (s *Server) SetUpstream(c *omdb.Client) {
	s.upstream.Store(c)
}

func (s *Server) currentUpstream() *omdb.Client {
	return s.upstream.Load()
}

func (s *Server) cacheControl() string {
	return fmt.Sprintf("public, max-age=%d", int(s.cacheMaxAge.Seconds()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// writeMovieError writes an error in the search API's own envelope.
func (s *Server) writeMovieError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, core.Page{Response: "False", Error: message})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
