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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eclesh/welford"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/timetools/phcsync/servo"
)

// StatsServer is what the control loop reports to
type StatsServer interface {
	SetCounter(key string, val int64)
	UpdateCounterBy(key string, count int64)
	SetServo(offset int64, drift, freqAdj float64, state servo.State)
}

// Stats accumulates counters and gauges and serves them over HTTP:
// JSON on /counters, prometheus on /metrics
type Stats struct {
	mux          sync.Mutex
	counters     map[string]int64
	window       *welford.Stats
	windowCount  int64
	maxAbsOffset int64

	registry    *prometheus.Registry
	offsetGauge prometheus.Gauge
	driftGauge  prometheus.Gauge
	freqGauge   prometheus.Gauge
	stateGauge  prometheus.Gauge
}

// NewStats creates new instance of Stats
func NewStats() *Stats {
	s := &Stats{
		counters: map[string]int64{},
		window:   welford.New(),
		registry: prometheus.NewRegistry(),
	}
	s.offsetGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phcsync_offset_ns",
		Help: "Last measured offset in nanoseconds",
	})
	s.driftGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phcsync_drift_ppb",
		Help: "Servo drift estimate in PPB",
	})
	s.freqGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phcsync_freq_adj_ppb",
		Help: "Last applied frequency adjustment in PPB",
	})
	s.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phcsync_servo_state",
		Help: "Servo state machine position",
	})
	s.registry.MustRegister(s.offsetGauge, s.driftGauge, s.freqGauge, s.stateGauge)
	return s
}

// UpdateCounterBy will increment counter
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

// SetCounter will set a counter to the provided value
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// GetCounters returns a copy of the counters map
func (s *Stats) GetCounters() map[string]int64 {
	ret := make(map[string]int64)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// SetServo records the outcome of one servo invocation
func (s *Stats) SetServo(offset int64, drift, freqAdj float64, state servo.State) {
	s.mux.Lock()
	s.counters["servo.state"] = int64(state)
	s.window.Add(float64(offset))
	s.windowCount++
	abs := offset
	if abs < 0 {
		abs = -abs
	}
	if abs > s.maxAbsOffset {
		s.maxAbsOffset = abs
	}
	s.mux.Unlock()

	s.offsetGauge.Set(float64(offset))
	s.driftGauge.Set(drift)
	s.freqGauge.Set(freqAdj)
	s.stateGauge.Set(float64(state))
}

// aggregate rolls the offset window into counters and restarts the window
func (s *Stats) aggregate() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.windowCount > 0 {
		s.counters["offset.mean"] = int64(s.window.Mean())
		s.counters["offset.stddev"] = int64(s.window.Stddev())
		s.counters["offset.max_abs"] = s.maxAbsOffset
	}
	s.window = welford.New()
	s.windowCount = 0
	s.maxAbsOffset = 0
}

// Start runs the monitoring http server and the periodic collectors
func (s *Stats) Start(monitoringPort int, interval time.Duration) {
	go func() {
		for range time.Tick(interval) {
			s.aggregate()
			if err := s.CollectSysStats(); err != nil {
				log.Warningf("failed to get system metrics: %v", err)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/counters", s.handleCountersRequest)
	mux.Handle("/metrics", promhttp.HandlerFor(
		s.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("starting monitoring server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("failed to start listener: %v", err)
	}
}

// handleCountersRequest exposes the counters map as JSON
func (s *Stats) handleCountersRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.GetCounters())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("failed to reply: %v", err)
	}
}
