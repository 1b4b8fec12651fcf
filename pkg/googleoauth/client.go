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

// Package googleoauth verifies credentials issued by Google's OAuth2
// stack on the server side. ID tokens are checked locally: structure,
// claims, and RS256 signature against Google's published signing keys,
// which are cached for as long as the key endpoint allows. Access tokens
// are opaque and resolved through the userinfo endpoint instead.
package googleoauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/authlayer/google-oauth-go/pkg/claims"
	"github.com/authlayer/google-oauth-go/pkg/jwks"
	"github.com/authlayer/google-oauth-go/pkg/jwt"
	"github.com/authlayer/google-oauth-go/pkg/metrics"
	"github.com/authlayer/google-oauth-go/pkg/verify"
)

const (
	// DefaultCertsURL is Google's published signing-key endpoint.
	DefaultCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

	// DefaultUserInfoURL is the endpoint that resolves access tokens to
	// their user claims.
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// DefaultTimeout bounds each network call unless overridden with
	// WithTimeout.
	DefaultTimeout = 5 * time.Second
)

// maxUserInfoBytes caps how much of a userinfo response is read.
const maxUserInfoBytes = 1 << 20

// Client verifies Google ID tokens and access tokens. The trusted
// audience set may be changed at any time; all methods are safe for
// concurrent use.
type Client struct {
	mu        sync.RWMutex
	clientIDs []string

	timeout     time.Duration
	httpClient  *http.Client
	userInfoURL string
	keys        *jwks.Cache
	verifier    *verify.Verifier
	clock       clockwork.Clock
}

// New returns a Client that accepts tokens issued to clientID. An empty
// clientID leaves the audience check open until AddClientID is called.
func New(clientID string, opts ...Option) *Client {
	return NewWithIDs([]string{clientID}, opts...)
}

// NewWithIDs returns a Client that accepts tokens issued to any of ids.
// Empty entries are dropped.
func NewWithIDs(ids []string, opts ...Option) *Client {
	o := makeOptions(opts...)

	keys := o.keys
	if keys == nil {
		keys = jwks.NewCache(o.certsURL,
			jwks.WithHTTPClient(o.httpClient),
			jwks.WithTimeout(o.timeout),
			jwks.WithClock(o.clock),
		)
	}

	c := &Client{
		timeout:     o.timeout,
		httpClient:  o.httpClient,
		userInfoURL: o.userInfoURL,
		keys:        keys,
		verifier:    verify.New(),
		clock:       o.clock,
	}
	for _, id := range ids {
		c.AddClientID(id)
	}
	return c
}

// AddClientID registers another trusted audience. Empty and duplicate ids
// are ignored.
func (c *Client) AddClientID(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.clientIDs {
		if existing == id {
			return
		}
	}
	c.clientIDs = append(c.clientIDs, id)
}

// RemoveClientID drops id from the trusted audiences if present.
func (c *Client) RemoveClientID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.clientIDs {
		if existing == id {
			c.clientIDs = append(c.clientIDs[:i], c.clientIDs[i+1:]...)
			return
		}
	}
}

// ClientIDs returns a copy of the trusted audience set.
func (c *Client) ClientIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.clientIDs...)
}

// ValidateIDToken fully verifies an ID token: structure, algorithm,
// claims, and finally the RS256 signature against Google's current signing
// keys. It returns the complete payload or the first failure; there is no
// partial output.
func (c *Client) ValidateIDToken(ctx context.Context, idToken string) (*claims.IDToken, error) {
	payload, err := c.verifyIDToken(ctx, idToken)
	metrics.TokenVerifications.WithLabelValues(metrics.TypeIDToken, result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) verifyIDToken(ctx context.Context, idToken string) (*claims.IDToken, error) {
	tok, err := jwt.Parse[claims.IDToken](idToken)
	if err != nil {
		return nil, err
	}
	// Gate on the algorithm before anything else so unsupported tokens
	// fail the same way no matter what the key cache holds.
	if err := verify.SupportedAlgorithm(tok.Header.Algorithm); err != nil {
		return nil, err
	}
	if err := claims.Validate(c.ClientIDs(), &tok.Claims, c.clock.Now()); err != nil {
		return nil, err
	}
	key, err := c.keys.Get(ctx, tok.Header.Algorithm, tok.Header.KeyID)
	if err != nil {
		return nil, err
	}
	if err := c.verifier.Verify(key, tok.SignedContent(), tok.Signature); err != nil {
		return nil, err
	}
	return &tok.Claims, nil
}

// ValidateAccessToken resolves an access token through the userinfo
// endpoint and returns the claims Google reports for it. Access tokens
// are opaque; there is no local signature or audience check.
func (c *Client) ValidateAccessToken(ctx context.Context, accessToken string) (*claims.UserInfo, error) {
	info, err := c.fetchUserInfo(ctx, accessToken)
	metrics.TokenVerifications.WithLabelValues(metrics.TypeAccessToken, result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) fetchUserInfo(ctx context.Context, accessToken string) (*claims.UserInfo, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.userInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UserInfoError{Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UserInfoError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UserInfoError{StatusCode: resp.StatusCode}
	}

	var info claims.UserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return nil, &UserInfoError{Err: err}
	}
	return &info, nil
}

func result(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}
