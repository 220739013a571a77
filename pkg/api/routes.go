package api

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/movieei/pkg/core"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Only plain JSON routes are compressed; the socket route must stay
	// hijackable.
	mux.Handle("GET "+core.MoviesPath, gzhttp.GzipHandler(http.HandlerFunc(s.HandleMovies)))
	mux.HandleFunc("POST /api/auth/login", s.HandleLogin)
	mux.HandleFunc("GET /api/search/ws", s.HandleSearchSocket)
	mux.HandleFunc("GET /health", s.HandleHealth)
}

// Handler returns a mux with all routes and the default middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return RequestIDMiddleware(CorsMiddleware(mux))
}
