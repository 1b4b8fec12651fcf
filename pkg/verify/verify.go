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

// Package verify checks token signatures against the provider's published
// key material. Only RS256 (RSA PKCS#1 v1.5 over SHA-256) is implemented;
// every other algorithm fails closed.
package verify

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	lru "github.com/hashicorp/golang-lru"

	"github.com/authlayer/google-oauth-go/pkg/jwks"
)

// AlgorithmRS256 is the only signing algorithm Google uses for ID tokens
// and the only one this package verifies.
const AlgorithmRS256 = "RS256"

// keyCacheSize bounds how many reconstructed public keys are kept. Google
// publishes a handful of keys at a time, so this is generous.
const keyCacheSize = 16

// SupportedAlgorithm reports whether tokens signed with alg can be
// verified here. Anything but RS256 fails closed with
// *UnsupportedAlgorithmError, never silently.
func SupportedAlgorithm(alg string) error {
	if alg != AlgorithmRS256 {
		return &UnsupportedAlgorithmError{Algorithm: alg}
	}
	return nil
}

// Verifier verifies RS256 signatures. It memoizes the *rsa.PublicKey
// reconstructed from each distinct modulus/exponent pair, so repeat
// verifications against the same signing key skip the big-integer work.
type Verifier struct {
	keys *lru.Cache
}

// New returns a ready Verifier.
func New() *Verifier {
	cache, err := lru.New(keyCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Verifier{keys: cache}
}

// Verify checks sig over signedContent using the key material in key.
// signedContent must be the exact header.payload bytes of the token.
func (v *Verifier) Verify(key jwks.Key, signedContent, sig []byte) error {
	if err := SupportedAlgorithm(key.Algorithm); err != nil {
		return err
	}
	pub, err := v.publicKey(key)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(signedContent)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return &SignatureInvalidError{Err: err}
	}
	return nil
}

func (v *Verifier) publicKey(key jwks.Key) (*rsa.PublicKey, error) {
	cacheKey := key.Modulus + "." + key.Exponent
	if cached, ok := v.keys.Get(cacheKey); ok {
		return cached.(*rsa.PublicKey), nil
	}
	pub, err := publicKeyFromJWK(key)
	if err != nil {
		return nil, err
	}
	v.keys.Add(cacheKey, pub)
	return pub, nil
}

// publicKeyFromJWK reconstructs the RSA public key from its JWK form: the
// modulus is a big-endian big integer, the exponent accumulates bytewise.
func publicKeyFromJWK(key jwks.Key) (*rsa.PublicKey, error) {
	if key.Type != "RSA" {
		return nil, &KeyConstructionError{Field: "kty", Err: fmt.Errorf("unexpected key type %q", key.Type)}
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(key.Modulus)
	if err != nil {
		return nil, &KeyConstructionError{Field: "n", Err: err}
	}
	n := new(big.Int).SetBytes(nBytes)
	if n.Sign() <= 0 {
		return nil, &KeyConstructionError{Field: "n", Err: errors.New("modulus is zero")}
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(key.Exponent)
	if err != nil {
		return nil, &KeyConstructionError{Field: "e", Err: err}
	}
	if len(eBytes) == 0 || len(eBytes) > 4 {
		return nil, &KeyConstructionError{Field: "e", Err: errors.New("exponent out of range")}
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, &KeyConstructionError{Field: "e", Err: errors.New("exponent out of range")}
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
