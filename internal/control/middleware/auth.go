// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"

	"github.com/ManuGH/fieldvisit/internal/auth"
	"github.com/ManuGH/fieldvisit/internal/control/http/problem"
)

// RequireToken rejects requests that do not present the control token.
// An empty token disables the check.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.AuthorizeRequest(r, token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fieldvisit"`)
				problem.Write(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "UNAUTHORIZED",
					"missing or invalid control token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
