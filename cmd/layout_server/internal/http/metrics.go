// Copyright 2026 Google LLC. All Rights Reserved.
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

package http

import (
	"github.com/google/imxrt-bootlayout/api"
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values for Checks.
const (
	ResultPass  = "pass"
	ResultFail  = "fail"
	ResultError = "error"
)

// Metrics counts the checks made by a Server.
type Metrics struct {
	Checks     *prometheus.CounterVec
	Violations *prometheus.CounterVec
}

// NewMetrics creates the server metrics and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imxrt_layout_checks_total",
			Help: "Total number of uploaded images checked, by board and result",
		}, []string{"board", "result"}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imxrt_layout_violations_total",
			Help: "Total number of layout violations found, by board",
		}, []string{"board"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Checks,
			m.Violations,
		)
	}

	return m
}

func (m *Metrics) observe(r api.Report) {
	if m == nil {
		return
	}
	result := ResultPass
	switch {
	case r.Error != "":
		result = ResultError
	case len(r.Violations) > 0:
		result = ResultFail
	}
	m.Checks.WithLabelValues(r.Board, result).Inc()
	m.Violations.WithLabelValues(r.Board).Add(float64(len(r.Violations)))
}
