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

package googleoauth

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/authlayer/google-oauth-go/pkg/jwks"
)

// Option is a functional option for customizing a Client.
type Option func(*options)

type options struct {
	timeout     time.Duration
	httpClient  *http.Client
	clock       clockwork.Clock
	certsURL    string
	userInfoURL string
	keys        *jwks.Cache
}

func makeOptions(opts ...Option) *options {
	o := &options{
		timeout:     DefaultTimeout,
		httpClient:  &http.Client{},
		clock:       clockwork.NewRealClock(),
		certsURL:    DefaultCertsURL,
		userInfoURL: DefaultUserInfoURL,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithTimeout bounds each network call the client makes. A non-positive
// duration is ignored and the previous value kept.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHTTPClient substitutes the HTTP client used for key fetches and
// userinfo calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithClock substitutes the clock used for expiry checks and key-cache
// freshness. Tests inject a fake clock here; expiry checking itself cannot
// be turned off.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithCertsURL overrides the signing-key endpoint.
func WithCertsURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.certsURL = url
		}
	}
}

// WithUserInfoURL overrides the userinfo endpoint used for access tokens.
func WithUserInfoURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.userInfoURL = url
		}
	}
}

// WithKeyCache shares an existing key cache between clients instead of
// building a private one. The cache keeps its own URL, clock and timeout;
// WithCertsURL has no effect when this option is set.
func WithKeyCache(cache *jwks.Cache) Option {
	return func(o *options) {
		if cache != nil {
			o.keys = cache
		}
	}
}
