// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/api/problem"
	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// Recoverer turns a handler panic into a logged 500 problem response.
// http.ErrAbortHandler is re-raised so the server can drop the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger := xglog.WithComponentFromContext(r.Context(), "api")
			logger.Error().
				Str("event", "http.panic").
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("recovered from handler panic")
			problem.Respond(w, r, http.StatusInternalServerError, "internal_error", "", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
