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
//

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values recorded against the counters below.
const (
	ResultSuccess = "success"
	ResultError   = "error"

	TypeIDToken     = "id_token"
	TypeAccessToken = "access_token"
)

var (
	TokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "googleoauth_token_verifications_total",
		Help: "The total number of token verifications by token type and result",
	}, []string{"type", "result"})

	KeyRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "googleoauth_key_refreshes_total",
		Help: "The total number of signing key fetches by result",
	}, []string{"result"})

	KeyFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "googleoauth_key_fetch_latency",
		Help: "Latency of signing key endpoint fetches",
	})
)
