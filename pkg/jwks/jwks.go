// Copyright 2024 The AuthLayer Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jwks caches the signing keys a provider publishes at its JWKS
// endpoint. The cache honors the freshness window advertised by the
// endpoint's Cache-Control response header and refreshes the whole set at
// once when it elapses.
package jwks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pquerna/cachecontrol/cacheobject"

	"github.com/authlayer/google-oauth-go/pkg/log"
	"github.com/authlayer/google-oauth-go/pkg/metrics"
)

// maxResponseBytes caps how much of a key-endpoint response is read.
const maxResponseBytes = 1 << 20

// Key is one signing key as published at the provider's JWKS endpoint.
// Exponent and Modulus hold the raw base64url values from the document;
// they are not decoded here.
type Key struct {
	KeyID     string `json:"kid"`
	Exponent  string `json:"e"`
	Algorithm string `json:"alg"`
	Type      string `json:"kty"`
	Modulus   string `json:"n"`
}

// KeySet is the document served by the JWKS endpoint.
type KeySet struct {
	Keys []Key `json:"keys"`
}

// Option is a functional option for customizing a Cache.
type Option func(*options)

type options struct {
	client  *http.Client
	timeout time.Duration
	clock   clockwork.Clock
}

func makeOptions(opts ...Option) *options {
	o := &options{
		client:  &http.Client{},
		timeout: 5 * time.Second,
		clock:   clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithHTTPClient sets the client used to fetch the key set.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithTimeout bounds each key fetch. A non-positive value is ignored and
// the previous value kept.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithClock substitutes the clock used for freshness decisions.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// Cache holds the most recently fetched key set and serves lookups from it
// until the freshness window derived from the fetch response has elapsed.
// A Cache may be shared across any number of clients; all methods are safe
// for concurrent use.
type Cache struct {
	url     string
	client  *http.Client
	timeout time.Duration
	clock   clockwork.Clock

	mu         sync.RWMutex
	keys       []Key
	validUntil time.Time
}

// NewCache returns an empty Cache that fetches keys from url on first use.
func NewCache(url string, opts ...Option) *Cache {
	o := makeOptions(opts...)
	return &Cache{
		url:     url,
		client:  o.client,
		timeout: o.timeout,
		clock:   o.clock,
	}
}

// NeedRefresh reports whether the cached set is stale: nothing has been
// fetched yet, or the freshness window has elapsed.
func (c *Cache) NeedRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.needRefreshLocked()
}

func (c *Cache) needRefreshLocked() bool {
	return c.validUntil.IsZero() || !c.clock.Now().Before(c.validUntil)
}

// Get returns the key matching alg and kid, refreshing the set first if it
// has gone stale. A lookup miss against a fresh set returns
// *KeyNotFoundError without a second fetch; the caller decides whether to
// retry later.
func (c *Cache) Get(ctx context.Context, alg, kid string) (Key, error) {
	c.mu.RLock()
	if !c.needRefreshLocked() {
		key, ok := find(c.keys, alg, kid)
		c.mu.RUnlock()
		if !ok {
			return Key{}, &KeyNotFoundError{Algorithm: alg, KeyID: kid}
		}
		log.Logger.Debug("keys: using cached set")
		return key, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have refreshed while we waited for the write
	// lock; re-check before fetching.
	if c.needRefreshLocked() {
		if err := c.refreshLocked(ctx); err != nil {
			return Key{}, err
		}
	}

	key, ok := find(c.keys, alg, kid)
	if !ok {
		return Key{}, &KeyNotFoundError{Algorithm: alg, KeyID: kid}
	}
	return key, nil
}

// Refresh fetches the key set immediately, regardless of freshness.
// Lookups refresh on their own when the window elapses; this is for
// callers that hit a rotation miss and want to retry without waiting the
// window out.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func find(keys []Key, alg, kid string) (Key, bool) {
	for _, k := range keys {
		if k.Algorithm == alg && k.KeyID == kid {
			return k, true
		}
	}
	return Key{}, false
}

// refreshLocked fetches the key set and replaces the cached one wholesale.
// Keys absent from the response are dropped even if their kid was served
// before. On any failure the stale set is left untouched. Callers must
// hold the write lock.
func (c *Cache) refreshLocked(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	log.Logger.Debugw("keys: fetching fresh set", "url", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		metrics.KeyRefreshes.WithLabelValues(metrics.ResultError).Inc()
		return &FetchError{URL: c.url, Err: err}
	}

	start := c.clock.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.KeyRefreshes.WithLabelValues(metrics.ResultError).Inc()
		return &FetchError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()
	metrics.KeyFetchLatency.Observe(c.clock.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.KeyRefreshes.WithLabelValues(metrics.ResultError).Inc()
		return &FetchError{URL: c.url, StatusCode: resp.StatusCode}
	}

	var set KeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&set); err != nil {
		metrics.KeyRefreshes.WithLabelValues(metrics.ResultError).Inc()
		return &FetchError{URL: c.url, Err: err}
	}

	c.keys = set.Keys
	c.validUntil = c.clock.Now().Add(freshness(resp.Header))
	metrics.KeyRefreshes.WithLabelValues(metrics.ResultSuccess).Inc()
	return nil
}

// freshness computes how long a response may be served from cache: max-age
// minus the time it already spent in intermediate caches (the Age header),
// clamped at zero. Absent or unparsable directives yield zero, which makes
// the next lookup refresh again.
func freshness(h http.Header) time.Duration {
	directives, err := cacheobject.ParseResponseCacheControl(h.Get("Cache-Control"))
	if err != nil || directives.MaxAge < 0 {
		return 0
	}
	remaining := int64(directives.MaxAge)
	if age, err := strconv.ParseInt(h.Get("Age"), 10, 64); err == nil && age > 0 {
		// Clamp in whole seconds. Converting an arbitrarily large Age
		// to nanoseconds first overflows and widens the window instead.
		if age >= remaining {
			return 0
		}
		remaining -= age
	}
	return time.Duration(remaining) * time.Second
}
