// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ControlTokenHeader carries the control token for clients that cannot set Authorization.
const ControlTokenHeader = "X-Control-Token"

// ExtractToken returns the control token presented by r. A bearer
// Authorization header wins over ControlTokenHeader.
func ExtractToken(r *http.Request) string {
	scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(r.Header.Get(ControlTokenHeader))
}

// AuthorizeToken compares in constant time. An empty side never matches.
func AuthorizeToken(got, expected string) bool {
	if got == "" || strings.TrimSpace(expected) == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest reports whether r presents expectedToken.
func AuthorizeRequest(r *http.Request, expectedToken string) bool {
	return r != nil && AuthorizeToken(ExtractToken(r), expectedToken)
}
