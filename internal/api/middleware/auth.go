// SPDX-License-Identifier: MIT

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/api/problem"
)

// BearerToken requires "Authorization: Bearer <token>". An empty token
// disables the check.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearer(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventcast"`)
				problem.Respond(w, r, http.StatusUnauthorized, "unauthorized", "", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
