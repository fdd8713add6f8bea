package middleware

import (
	"net/http"

	"github.com/nkiryanov/netcraft/internal/handlers/render"
)

// Turn handler panic into 500 response.
// If handler already started response, connection is left as is: nothing sane may be written
func RecoverMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				l.Error("handler panicked", "uri", r.RequestURI, "panic", v)
				if !rec.wroteHeader {
					render.ServiceError(rec, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
