// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package auth holds the field user's API credential and the local control token checks.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	"github.com/ManuGH/fieldvisit/internal/kv"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// CredentialKey is where the login flow stores the bearer token.
const CredentialKey = "auth_token"

// ErrNoCredential means the user is logged out.
var ErrNoCredential = errors.New("auth: no credential")

// Credentials resolves the current bearer token. A token saved in the store wins over
// the configured static token. Expired JWTs count as absent.
type Credentials struct {
	store kv.Store // may be nil
	clock timer.Clock

	mu     sync.RWMutex
	static string
}

// NewCredentials returns a credential resolver.
func NewCredentials(store kv.Store, static string, clock timer.Clock) *Credentials {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	return &Credentials{store: store, static: strings.TrimSpace(static), clock: clock}
}

// Current returns the usable token, or ok=false when logged out or expired.
func (c *Credentials) Current(ctx context.Context) (string, bool, error) {
	c.mu.RLock()
	token := c.static
	c.mu.RUnlock()
	if c.store != nil {
		v, ok, err := c.store.Get(ctx, CredentialKey)
		if err != nil {
			return "", false, fmt.Errorf("auth: read credential: %w", err)
		}
		if ok && strings.TrimSpace(v) != "" {
			token = strings.TrimSpace(v)
		}
	}
	if token == "" {
		return "", false, nil
	}
	if exp, ok := Expiry(token); ok && !exp.After(c.clock.Now()) {
		return "", false, nil
	}
	return token, true, nil
}

// Present reports whether a usable credential exists.
func (c *Credentials) Present(ctx context.Context) (bool, error) {
	_, ok, err := c.Current(ctx)
	return ok, err
}

// Save stores a token obtained by the login flow.
func (c *Credentials) Save(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("auth: empty token")
	}
	if c.store == nil {
		return errors.New("auth: no credential store configured")
	}
	return c.store.Set(ctx, CredentialKey, token)
}

// Clear logs the user out. The static token is dropped for the rest of the process lifetime.
func (c *Credentials) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.static = ""
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	if err := c.store.Remove(ctx, CredentialKey); err != nil {
		return fmt.Errorf("auth: clear credential: %w", err)
	}
	logger := xglog.WithComponent("auth")
	logger.Info().Str(xglog.FieldEvent, "auth.logged_out").Msg("credential cleared")
	return nil
}

// Expiry reads the exp claim of a JWT without verifying its signature; the server verifies it.
// ok is false for opaque tokens and JWTs without exp.
func Expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenSource adapts Credentials to oauth2 so an oauth2.Transport can attach the bearer header.
// It is re-evaluated on every request, so a logout takes effect immediately.
func (c *Credentials) TokenSource() oauth2.TokenSource {
	return credentialSource{c: c}
}

type credentialSource struct{ c *Credentials }

func (s credentialSource) Token() (*oauth2.Token, error) {
	token, ok, err := s.c.Current(context.Background())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoCredential
	}
	t := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	if exp, ok := Expiry(token); ok {
		t.Expiry = exp
	}
	return t, nil
}
