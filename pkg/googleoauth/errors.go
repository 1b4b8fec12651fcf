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

import "fmt"

// UserInfoError reports a failed userinfo exchange: a transport error (Err
// set) or an unexpected HTTP status (StatusCode set), e.g. 401 for a
// revoked or expired access token.
type UserInfoError struct {
	StatusCode int
	Err        error
}

func (e *UserInfoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("googleoauth: userinfo request failed: %v", e.Err)
	}
	return fmt.Sprintf("googleoauth: userinfo request failed with status %d", e.StatusCode)
}

func (e *UserInfoError) Unwrap() error {
	return e.Err
}
