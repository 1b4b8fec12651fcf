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

package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

var testSet = KeySet{
	Keys: []Key{
		{KeyID: "k1", Exponent: "AQAB", Algorithm: "RS256", Type: "RSA", Modulus: "xwQ72P9z9OYshiQ-ntDYaPnnfwG6u9JAdLMZ5o0dmjlcyrvwQRdoFIKPnO65Q8mh"},
		{KeyID: "k2", Exponent: "AQAB", Algorithm: "RS256", Type: "RSA", Modulus: "0vx7agoebGcQSuuPiLJXZptN9nndrQmbXEps2aiAFbWhM78LhWx4cbbfAAtVT86z"},
	},
}

// newKeyEndpoint serves set with the given response headers and counts how
// many fetches it saw.
func newKeyEndpoint(t *testing.T, set KeySet, headers map[string]string, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		if err := json.NewEncoder(w).Encode(set); err != nil {
			t.Errorf("encoding key set: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetFetchesOnFirstUse(t *testing.T) {
	var fetches atomic.Int32
	srv := newKeyEndpoint(t, testSet, map[string]string{"Cache-Control": "max-age=3600"}, &fetches)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	if !cache.NeedRefresh() {
		t.Error("expected a brand new cache to need a refresh")
	}

	key, err := cache.Get(context.Background(), "RS256", "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(testSet.Keys[0], key); diff != "" {
		t.Errorf("key mismatch (-want +got): %s", diff)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestGetServesFromCacheWhileFresh(t *testing.T) {
	var fetches atomic.Int32
	srv := newKeyEndpoint(t, testSet, map[string]string{"Cache-Control": "max-age=3600"}, &fetches)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	for _, kid := range []string{"k1", "k2", "k1"} {
		if _, err := cache.Get(context.Background(), "RS256", kid); err != nil {
			t.Fatalf("unexpected error for kid %s: %v", kid, err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected consecutive lookups to reuse the cached set, got %d fetches", got)
	}
}

func TestNeedRefreshFollowsMaxAge(t *testing.T) {
	var fetches atomic.Int32
	srv := newKeyEndpoint(t, testSet, map[string]string{"Cache-Control": "max-age=3600"}, &fetches)

	clock := clockwork.NewFakeClock()
	cache := NewCache(srv.URL, WithClock(clock))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.NeedRefresh() {
		t.Error("expected a just-refreshed cache to be fresh")
	}

	clock.Advance(3599 * time.Second)
	if cache.NeedRefresh() {
		t.Error("expected the cache to stay fresh inside the max-age window")
	}

	clock.Advance(1 * time.Second)
	if !cache.NeedRefresh() {
		t.Error("expected the cache to go stale once max-age elapsed")
	}

	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected a stale cache to refetch, got %d fetches", got)
	}
}

func TestAgeHeaderClampsFreshness(t *testing.T) {
	var fetches atomic.Int32
	headers := map[string]string{"Cache-Control": "max-age=100", "Age": "150"}
	srv := newKeyEndpoint(t, testSet, headers, &fetches)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The response was already older than its max-age, so the remaining
	// freshness clamps to zero and the next lookup refreshes immediately.
	if !cache.NeedRefresh() {
		t.Error("expected an over-aged response to leave the cache stale")
	}
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestOversizedAgeHeaderLeavesCacheStale(t *testing.T) {
	var fetches atomic.Int32
	headers := map[string]string{"Cache-Control": "max-age=100", "Age": "10000000000"}
	srv := newKeyEndpoint(t, testSet, headers, &fetches)

	clock := clockwork.NewFakeClock()
	cache := NewCache(srv.URL, WithClock(clock))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// An Age far past max-age clamps the window to zero; it must never
	// widen it.
	if !cache.NeedRefresh() {
		t.Error("expected an oversized Age to leave the cache stale")
	}

	clock.Advance(365 * 24 * time.Hour)
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected the next lookup to refetch, got %d fetches", got)
	}
}

func TestAgeHeaderReducesFreshness(t *testing.T) {
	var fetches atomic.Int32
	headers := map[string]string{"Cache-Control": "max-age=100", "Age": "40"}
	srv := newKeyEndpoint(t, testSet, headers, &fetches)

	clock := clockwork.NewFakeClock()
	cache := NewCache(srv.URL, WithClock(clock))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(59 * time.Second)
	if cache.NeedRefresh() {
		t.Error("expected 60 seconds of freshness to remain")
	}
	clock.Advance(1 * time.Second)
	if !cache.NeedRefresh() {
		t.Error("expected the reduced window to have elapsed")
	}
}

func TestMissingCacheControlForcesRefresh(t *testing.T) {
	var fetches atomic.Int32
	srv := newKeyEndpoint(t, testSet, nil, &fetches)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cache.NeedRefresh() {
		t.Error("expected zero freshness without a Cache-Control header")
	}
}

func TestGetKeyNotFound(t *testing.T) {
	var fetches atomic.Int32
	srv := newKeyEndpoint(t, testSet, map[string]string{"Cache-Control": "max-age=3600"}, &fetches)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]struct {
		alg string
		kid string
	}{
		"unknown kid":        {alg: "RS256", kid: "nope"},
		"algorithm mismatch": {alg: "ES256", kid: "k1"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := cache.Get(context.Background(), test.alg, test.kid)
			var notFound *KeyNotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected KeyNotFoundError, got %v", err)
			}
			if notFound.Algorithm != test.alg || notFound.KeyID != test.kid {
				t.Errorf("error fields: expected %s/%s, got %s/%s", test.alg, test.kid, notFound.Algorithm, notFound.KeyID)
			}
		})
	}

	// A miss against a fresh set must not trigger a second fetch.
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected misses to be answered from the fresh set, got %d fetches", got)
	}
}

func TestRefreshReplacesSetWholesale(t *testing.T) {
	var fetches atomic.Int32
	rotated := KeySet{Keys: []Key{
		{KeyID: "k3", Exponent: "AQAB", Algorithm: "RS256", Type: "RSA", Modulus: "4BqrB2DJ348yvhXg39g8ZLVlLvqwXb9rUzXyoNMPRzJw9LXimw0rq4HXkBBVfTxQ"},
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set := testSet
		if fetches.Add(1) > 1 {
			set = rotated
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		if err := json.NewEncoder(w).Encode(set); err != nil {
			t.Errorf("encoding key set: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClock()
	cache := NewCache(srv.URL, WithClock(clock))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(3601 * time.Second)
	if _, err := cache.Get(context.Background(), "RS256", "k3"); err != nil {
		t.Fatalf("expected the rotated key after refresh: %v", err)
	}

	// k1 was dropped by the rotation; the fresh set answers the miss.
	_, err := cache.Get(context.Background(), "RS256", "k1")
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected KeyNotFoundError for a rotated-out key, got %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestRefreshForcesFetchBeforeWindowElapses(t *testing.T) {
	var fetches atomic.Int32
	rotated := KeySet{Keys: []Key{
		{KeyID: "k3", Exponent: "AQAB", Algorithm: "RS256", Type: "RSA", Modulus: "4BqrB2DJ348yvhXg39g8ZLVlLvqwXb9rUzXyoNMPRzJw9LXimw0rq4HXkBBVfTxQ"},
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set := testSet
		if fetches.Add(1) > 1 {
			set = rotated
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		if err := json.NewEncoder(w).Encode(set); err != nil {
			t.Errorf("encoding key set: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The provider rotated but the cached set is still fresh, so the new
	// key is a miss until the caller forces a refresh.
	if _, err := cache.Get(context.Background(), "RS256", "k3"); err == nil {
		t.Fatal("expected a miss against the fresh pre-rotation set")
	}
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("forced refresh failed: %v", err)
	}
	if _, err := cache.Get(context.Background(), "RS256", "k3"); err != nil {
		t.Fatalf("expected the rotated key after a forced refresh: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestGetFetchErrors(t *testing.T) {
	tests := map[string]struct {
		handler    http.HandlerFunc
		wantStatus int
	}{
		"server error": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		"not found": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gone", http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		"malformed body": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(test.handler)
			t.Cleanup(srv.Close)

			cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
			_, err := cache.Get(context.Background(), "RS256", "k1")
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if test.wantStatus != 0 && fetchErr.StatusCode != test.wantStatus {
				t.Errorf("expected status %d, got %d", test.wantStatus, fetchErr.StatusCode)
			}
			if test.wantStatus == 0 && fetchErr.Unwrap() == nil {
				t.Error("expected a wrapped cause")
			}
		})
	}
}

func TestGetRecoversAfterFailedRefresh(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		if err := json.NewEncoder(w).Encode(testSet); err != nil {
			t.Errorf("encoding key set: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err == nil {
		t.Fatal("expected the first fetch to fail")
	}
	if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
		t.Fatalf("expected the retry to succeed: %v", err)
	}
}

func TestGetHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	cache := NewCache(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := cache.Get(context.Background(), "RS256", "k1")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a deadline error, got %v", fetchErr.Err)
	}
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	srv := newKeyEndpoint(t, testSet, map[string]string{"Cache-Control": "max-age=3600"}, &fetches)

	cache := NewCache(srv.URL, WithClock(clockwork.NewFakeClock()))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), "RS256", "k1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	// Whoever wins the write lock refreshes; everyone else re-checks and
	// reads the now-fresh set.
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected a single fetch across concurrent lookups, got %d", got)
	}
}

func TestFreshness(t *testing.T) {
	tests := map[string]struct {
		cacheControl string
		age          string
		want         time.Duration
	}{
		"max-age only":         {cacheControl: "max-age=3600", want: 3600 * time.Second},
		"max-age with age":     {cacheControl: "max-age=100", age: "40", want: 60 * time.Second},
		"age exceeds max-age":  {cacheControl: "max-age=100", age: "150", want: 0},
		"age equals max-age":   {cacheControl: "max-age=100", age: "100", want: 0},
		"oversized age":        {cacheControl: "max-age=100", age: "10000000000", want: 0},
		"no header":            {want: 0},
		"no max-age directive": {cacheControl: "no-store", want: 0},
		"unparsable max-age":   {cacheControl: "max-age=forever", want: 0},
		"unparsable age":       {cacheControl: "max-age=100", age: "stale", want: 100 * time.Second},
		"age beyond int64":     {cacheControl: "max-age=100", age: "99999999999999999999", want: 100 * time.Second},
		"extra directives":     {cacheControl: "public, max-age=22753, must-revalidate, no-transform", want: 22753 * time.Second},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			h := http.Header{}
			if test.cacheControl != "" {
				h.Set("Cache-Control", test.cacheControl)
			}
			if test.age != "" {
				h.Set("Age", test.age)
			}
			if got := freshness(h); got != test.want {
				t.Errorf("expected %v, got %v", test.want, got)
			}
		})
	}
}
