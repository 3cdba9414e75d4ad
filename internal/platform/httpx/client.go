// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package httpx builds the outbound HTTP clients used by fieldvisit.
// Nothing in the module may reach for http.DefaultClient.
package httpx

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultClientTimeout         = 15 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultIdleConnTimeout       = 60 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultKeepAlive             = 30 * time.Second
	defaultMaxIdleConns          = 8
	defaultMaxIdleConnsPerHost   = 4
)

// NewTransport returns a transport whose dial, TLS and response-header
// timeouts never exceed the overall request timeout.
func NewTransport(timeout time.Duration) *http.Transport {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	dialTimeout := min(timeout, defaultDialTimeout)
	headerTimeout := min(timeout, defaultResponseHeaderTimeout)

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}

// NewClient wraps rt (or a fresh NewTransport when rt is nil) in a client
// with an overall timeout. Multipart uploads carry audio files, so the
// default is longer than a plain JSON probe would need.
func NewClient(timeout time.Duration, rt http.RoundTripper) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	if rt == nil {
		rt = NewTransport(timeout)
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}
