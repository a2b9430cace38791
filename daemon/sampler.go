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
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const nsPerSec = int64(time.Second)

// PPSFetchTimeout bounds how long a missing PPS signal can stall the
// control loop. Timing out is a transient failure, not fatal.
const PPSFetchTimeout = 10 * time.Second

// Sample is one offset measurement: the signed deviation of the
// destination clock from the reference at Timestamp (reference ns).
type Sample struct {
	Offset    int64
	Timestamp uint64
}

// TimeSource is a readable clock consumed by samplers
type TimeSource interface {
	Time() (time.Time, error)
}

// Sampler produces the next offset sample. Which implementation is
// active is decided once at startup, never per iteration.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// PHCSampler measures offset by reading the master and destination
// clocks back to back once per interval. The measurement is bounded
// by the read latency of the master device, compensated with the
// operator-supplied readDelay constant.
type PHCSampler struct {
	src       TimeSource
	dst       TimeSource
	readDelay time.Duration
	interval  time.Duration
}

// NewPHCSampler creates a sampler reading src vs dst every interval
func NewPHCSampler(src, dst TimeSource, readDelay, interval time.Duration) *PHCSampler {
	return &PHCSampler{src: src, dst: dst, readDelay: readDelay, interval: interval}
}

// Sample sleeps the interval, then reads both clocks as close together
// as possible. The sample is timestamped in destination-clock time,
// which is what the servo's drift bookkeeping is relative to.
func (s *PHCSampler) Sample(ctx context.Context) (Sample, error) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case <-timer.C:
	}
	tsrc, err := s.src.Time()
	if err != nil {
		return Sample{}, fmt.Errorf("reading master clock: %w", err)
	}
	tdst, err := s.dst.Time()
	if err != nil {
		return Sample{}, fmt.Errorf("reading destination clock: %w", err)
	}
	offset := tdst.UnixNano() - tsrc.UnixNano() - int64(s.readDelay)
	log.Debugf("phc offset %9d", offset)
	return Sample{Offset: offset, Timestamp: uint64(tdst.UnixNano())}, nil
}

// PPSFetcher blocks until the next PPS assert edge
type PPSFetcher interface {
	Fetch(timeout time.Duration) (time.Time, error)
}

// PPSSampler derives offset samples from PPS edge timestamps. The edge
// lands on the reference second boundary, so the sub-second residual of
// its timestamp is the offset.
type PPSSampler struct {
	dev     PPSFetcher
	timeout time.Duration
}

// NewPPSSampler creates a sampler driven by PPS edges
func NewPPSSampler(dev PPSFetcher) *PPSSampler {
	return &PPSSampler{dev: dev, timeout: PPSFetchTimeout}
}

// Sample blocks until the next PPS edge and turns it into an offset sample
func (s *PPSSampler) Sample(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	edge, err := s.dev.Fetch(s.timeout)
	if err != nil {
		return Sample{}, fmt.Errorf("waiting for PPS edge: %w", err)
	}
	ts := uint64(edge.UnixNano())
	offset := ppsOffset(ts)
	log.Debugf("pps offset %9d", offset)
	return Sample{Offset: offset, Timestamp: ts}, nil
}

// ppsOffset wraps the sub-second residual of an edge timestamp into
// (-0.5s, +0.5s], signing it toward the nearest second boundary
func ppsOffset(ts uint64) int64 {
	offset := int64(ts % uint64(nsPerSec))
	if offset > nsPerSec/2 {
		offset -= nsPerSec
	}
	return offset
}
