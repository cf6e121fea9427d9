// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/log"
)

// AccessLog writes one structured line per request. Server errors log at
// error level, client errors at warn, the rest at info.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrap(w)
		next.ServeHTTP(rw, r)

		logger := xglog.WithComponentFromContext(r.Context(), "api")
		var ev *zerolog.Event
		switch {
		case rw.statusCode >= http.StatusInternalServerError:
			ev = logger.Error()
		case rw.statusCode >= http.StatusBadRequest:
			ev = logger.Warn()
		case !shouldTrace(r):
			ev = logger.Debug()
		default:
			ev = logger.Info()
		}
		ev = ev.Str("event", "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", rw.statusCode).
			Int("bytes", rw.bytesWritten).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr)
		if traceID, _ := TraceIDs(r); traceID != "" {
			ev = ev.Str("trace_id", traceID)
		}
		ev.Msg("request completed")
	})
}
