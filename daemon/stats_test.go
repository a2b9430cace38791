/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/timetools/phcsync/servo"
)

func TestStatsCounters(t *testing.T) {
	stats := NewStats()
	stats.SetCounter("samples", 10)
	stats.UpdateCounterBy("samples", 2)
	stats.UpdateCounterBy("sampler.errors", 1)

	counters := stats.GetCounters()
	require.Equal(t, int64(12), counters["samples"])
	require.Equal(t, int64(1), counters["sampler.errors"])

	// GetCounters returns a copy
	counters["samples"] = 0
	require.Equal(t, int64(12), stats.GetCounters()["samples"])
}

func TestStatsSetServo(t *testing.T) {
	stats := NewStats()
	stats.SetServo(-1500, 250.5, -300.25, servo.StateTracking)

	require.Equal(t, float64(-1500), testutil.ToFloat64(stats.offsetGauge))
	require.Equal(t, 250.5, testutil.ToFloat64(stats.driftGauge))
	require.Equal(t, -300.25, testutil.ToFloat64(stats.freqGauge))
	require.Equal(t, float64(servo.StateTracking), testutil.ToFloat64(stats.stateGauge))
	require.Equal(t, int64(servo.StateTracking), stats.GetCounters()["servo.state"])
}

func TestStatsAggregate(t *testing.T) {
	stats := NewStats()
	stats.SetServo(100, 0, 0, servo.StateTracking)
	stats.SetServo(-300, 0, 0, servo.StateTracking)
	stats.SetServo(200, 0, 0, servo.StateTracking)

	stats.aggregate()
	counters := stats.GetCounters()
	require.Equal(t, int64(0), counters["offset.mean"])
	require.Equal(t, int64(300), counters["offset.max_abs"])
	require.Greater(t, counters["offset.stddev"], int64(0))

	// empty window keeps the previous aggregates
	stats.aggregate()
	require.Equal(t, int64(300), stats.GetCounters()["offset.max_abs"])
}

func TestStatsCountersHandler(t *testing.T) {
	stats := NewStats()
	stats.SetCounter("samples", 42)

	req := httptest.NewRequest(http.MethodGet, "/counters", nil)
	rec := httptest.NewRecorder()
	stats.handleCountersRequest(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"samples": 42}`, rec.Body.String())
}
