package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem. http.ErrAbortHandler is
// re-raised so the server aborts the connection as intended.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison on recovered value
					panic(rvr)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Interface("panic", rvr).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				writeProblem(w, r, models.NewInternalError(requestID, "an unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
