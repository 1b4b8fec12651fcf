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

// Package jwt implements structural parsing of compact JWTs. It splits a
// token into its three segments, decodes them, and keeps hold of the exact
// signed byte range; it performs no validation or signature checking.
package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Segment names used to report where in the token a decode failed.
const (
	SegmentHeader    = "header"
	SegmentPayload   = "payload"
	SegmentSignature = "signature"
)

// Header is the decoded first segment of a compact JWT.
type Header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ,omitempty"`
	KeyID     string `json:"kid,omitempty"`
}

// Token is a structurally parsed JWT with its payload decoded into T.
type Token[T any] struct {
	// Raw is the compact serialization the token was parsed from.
	Raw       string
	Header    Header
	Claims    T
	Signature []byte

	signedLen int
}

// SignedContent returns the header.payload prefix of the raw token, the
// exact bytes the signature was produced over. Re-serializing the decoded
// JSON is not guaranteed to byte-match the original, so verification must
// use this substring and nothing else.
func (t *Token[T]) SignedContent() []byte {
	return []byte(t.Raw[:t.signedLen])
}

// DecodeSegment decodes one segment of a compact serialization. Segments
// use the URL-safe base64 alphabet with padding stripped.
func DecodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(seg)
}

// Parse splits raw on "." and decodes the three segments: the header into
// a Header, the payload into T, and the signature into bytes. Anything
// other than exactly three non-empty segments fails with
// *MalformedTokenError; decode failures carry the segment they occurred in.
func Parse[T any](raw string) (*Token[T], error) {
	parts := strings.Split(raw, ".")
	nonEmpty := 0
	for _, p := range parts {
		if p != "" {
			nonEmpty++
		}
	}
	if len(parts) != 3 || nonEmpty != 3 {
		return nil, &MalformedTokenError{Expected: 3, Got: nonEmpty}
	}

	headerJSON, err := DecodeSegment(parts[0])
	if err != nil {
		return nil, &DecodeError{Segment: SegmentHeader, Err: err}
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, &DecodeError{Segment: SegmentHeader, Err: err}
	}

	payloadJSON, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, &DecodeError{Segment: SegmentPayload, Err: err}
	}
	var claims T
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, &DecodeError{Segment: SegmentPayload, Err: err}
	}

	sig, err := DecodeSegment(parts[2])
	if err != nil {
		return nil, &DecodeError{Segment: SegmentSignature, Err: err}
	}

	return &Token[T]{
		Raw:       raw,
		Header:    header,
		Claims:    claims,
		Signature: sig,
		signedLen: len(parts[0]) + 1 + len(parts[1]),
	}, nil
}
