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

package verify

import "fmt"

// UnsupportedAlgorithmError reports a token signed with an algorithm this
// package does not verify.
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("verify: unsupported algorithm %q, only %s is supported", e.Algorithm, AlgorithmRS256)
}

// KeyConstructionError reports signing-key material that does not decode
// into a usable RSA public key. Field names the offending JWK member.
type KeyConstructionError struct {
	Field string
	Err   error
}

func (e *KeyConstructionError) Error() string {
	return fmt.Sprintf("verify: invalid signing key %s: %v", e.Field, e.Err)
}

func (e *KeyConstructionError) Unwrap() error {
	return e.Err
}

// SignatureInvalidError reports a signature that does not match the signed
// content under the resolved key.
type SignatureInvalidError struct {
	Err error
}

func (e *SignatureInvalidError) Error() string {
	return "verify: signature does not match signed content"
}

func (e *SignatureInvalidError) Unwrap() error {
	return e.Err
}
