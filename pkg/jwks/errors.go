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

import "fmt"

// FetchError reports a failed attempt to retrieve the key set, either a
// transport error (Err set) or an unexpected HTTP status (StatusCode set).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jwks: fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("jwks: fetching %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KeyNotFoundError reports that no key in the current set matches the
// algorithm and key id a token was signed with. The set is not re-fetched
// on a miss.
type KeyNotFoundError struct {
	Algorithm string
	KeyID     string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("jwks: no key for alg %q kid %q", e.Algorithm, e.KeyID)
}
