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

// Package claims defines the payload schemas Google embeds in its tokens
// and the checks a payload must pass before its signature is worth
// verifying.
package claims

import (
	"encoding/json"
	"time"
)

// Issuer values accepted in Google ID tokens. Google has issued both
// forms over time, so both must be treated as valid.
const (
	IssuerHTTPS = "https://accounts.google.com"
	IssuerBare  = "accounts.google.com"
)

// IDToken is the payload of a Google ID token. The iss, aud, sub, exp and
// iat claims are mandatory; everything else is a profile field that may be
// absent depending on the scopes granted.
type IDToken struct {
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
	Subject  string `json:"sub"`
	Expiry   int64  `json:"exp"`
	IssuedAt int64  `json:"iat"`

	NotBefore       int64  `json:"nbf,omitempty"`
	Email           string `json:"email,omitempty"`
	EmailVerified   bool   `json:"email_verified,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	Name            string `json:"name,omitempty"`
	Picture         string `json:"picture,omitempty"`
	GivenName       string `json:"given_name,omitempty"`
	FamilyName      string `json:"family_name,omitempty"`
	Locale          string `json:"locale,omitempty"`
	HostedDomain    string `json:"hd,omitempty"`
	Nonce           string `json:"nonce,omitempty"`
	AccessTokenHash string `json:"at_hash,omitempty"`
	JWTID           string `json:"jti,omitempty"`
}

// UnmarshalJSON decodes the payload and fails with *MissingClaimError when
// a mandatory claim is absent. Optional fields are left at their zero
// value.
func (t *IDToken) UnmarshalJSON(data []byte) error {
	type plain IDToken
	aux := struct {
		Issuer   *string `json:"iss"`
		Audience *string `json:"aud"`
		Subject  *string `json:"sub"`
		Expiry   *int64  `json:"exp"`
		IssuedAt *int64  `json:"iat"`
		*plain
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	mandatory := []struct {
		claim   string
		present bool
	}{
		{"iss", aux.Issuer != nil},
		{"aud", aux.Audience != nil},
		{"sub", aux.Subject != nil},
		{"exp", aux.Expiry != nil},
		{"iat", aux.IssuedAt != nil},
	}
	for _, m := range mandatory {
		if !m.present {
			return &MissingClaimError{Claim: m.claim}
		}
	}

	t.Issuer = *aux.Issuer
	t.Audience = *aux.Audience
	t.Subject = *aux.Subject
	t.Expiry = *aux.Expiry
	t.IssuedAt = *aux.IssuedAt
	return nil
}

// UserInfo is the document served by the userinfo endpoint for an access
// token. Only sub is guaranteed; the rest depends on the token's scopes.
type UserInfo struct {
	Subject       string `json:"sub"`
	Picture       string `json:"picture,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Locale        string `json:"locale,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
}

// UnmarshalJSON fails with *MissingClaimError when sub is absent.
func (u *UserInfo) UnmarshalJSON(data []byte) error {
	type plain UserInfo
	aux := struct {
		Subject *string `json:"sub"`
		*plain
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Subject == nil {
		return &MissingClaimError{Claim: "sub"}
	}
	u.Subject = *aux.Subject
	return nil
}

// Validate checks tok against the trusted audiences and the accepted
// issuers, then its expiry against now. An empty trusted set skips the
// audience check, for callers that bind audiences elsewhere. Checks run in
// that order and stop at the first failure; expiry is always enforced, so
// deterministic tests must inject their clock rather than disable it.
func Validate(trusted []string, tok *IDToken, now time.Time) error {
	if len(trusted) > 0 && !contains(trusted, tok.Audience) {
		return &AudienceMismatchError{Got: tok.Audience, Expected: trusted}
	}
	if tok.Issuer != IssuerHTTPS && tok.Issuer != IssuerBare {
		return &IssuerMismatchError{Got: tok.Issuer, Expected: []string{IssuerHTTPS, IssuerBare}}
	}
	if now.Unix() > tok.Expiry {
		return &TokenExpiredError{Now: now, Expiry: time.Unix(tok.Expiry, 0)}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
