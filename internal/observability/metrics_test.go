// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("/", 302, 2*time.Millisecond)
	m.ObserveRequest("/", 302, 3*time.Millisecond)
	m.ObserveRequest("/", 200, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/", "302")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/", "200")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestMetrics_AuthEventsAndSweeps(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthEvent("register")
	m.RecordSwept(4)
	m.RecordSwept(-1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("register")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.SessionsSweptTotal), 0)
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
