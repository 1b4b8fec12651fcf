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

package jwt

import "fmt"

// MalformedTokenError reports a token that does not split into the expected
// number of non-empty dot-separated segments.
type MalformedTokenError struct {
	Expected int
	// Got is the number of non-empty segments observed.
	Got int
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("jwt: malformed token, expected %d parts got %d", e.Expected, e.Got)
}

// DecodeError reports a segment that failed to decode, either as base64url
// or as JSON. Err carries the underlying cause.
type DecodeError struct {
	Segment string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jwt: malformed %s segment: %v", e.Segment, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
