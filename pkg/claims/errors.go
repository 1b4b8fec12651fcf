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

package claims

import (
	"fmt"
	"time"
)

// MissingClaimError reports a payload that lacks one of its mandatory
// claims.
type MissingClaimError struct {
	Claim string
}

func (e *MissingClaimError) Error() string {
	return fmt.Sprintf("claims: missing required claim %q", e.Claim)
}

// AudienceMismatchError reports an aud claim outside the trusted set.
type AudienceMismatchError struct {
	Got      string
	Expected []string
}

func (e *AudienceMismatchError) Error() string {
	return fmt.Sprintf("claims: unexpected audience %q", e.Got)
}

// IssuerMismatchError reports an iss claim that is not a Google issuer.
type IssuerMismatchError struct {
	Got      string
	Expected []string
}

func (e *IssuerMismatchError) Error() string {
	return fmt.Sprintf("claims: unexpected issuer %q", e.Got)
}

// TokenExpiredError reports a token whose exp claim lies in the past.
type TokenExpiredError struct {
	Now    time.Time
	Expiry time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("claims: token expired at %s", e.Expiry.UTC().Format(time.RFC3339))
}
