package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rubiojr/movieei/pkg/log"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an id, reusing the caller's
// when present. The ResponseWriter is passed through untouched so socket
// upgrades keep working.
func RequestIDMiddleware(next http.Handler) http.Handler {
	l := log.ForService("server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		l.Debugf("[%s] %s %s", id, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
