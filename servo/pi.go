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

package servo

import (
	log "github.com/sirupsen/logrus"
)

const nsPerSec = int64(1000000000)

// PiServo is an integral servo with a bootstrap state machine.
// It is a pure function of its own state and the input samples:
// it performs no I/O and never fails, so callers must only feed it
// samples they believe valid.
type PiServo struct {
	state  State
	drift  float64
	lastTs uint64
	/* configuration: */
	cfg     *PiServoCfg
	maxFreq float64
}

// NewPiServo to create servo structure
func NewPiServo(cfg *PiServoCfg) *PiServo {
	return &PiServo{
		cfg:     cfg,
		maxFreq: DefaultMaxFreqPPB,
	}
}

// SetMaxFreq is to adjust frequency range supported by the disciplined clock
func (s *PiServo) SetMaxFreq(freq float64) {
	s.maxFreq = freq
}

// GetState returns current state of the servo
func (s *PiServo) GetState() State {
	return s.state
}

// MeanFreq returns current drift estimate in PPB
func (s *PiServo) MeanFreq() float64 {
	return s.drift
}

// Sample consumes one offset measurement and returns the frequency value
// in PPB together with the state the servo was in when it produced it.
// The caller applies the result to the disciplined clock: a frequency
// correction of -ppb in every state except StateInit1 (no correction) and
// StateStep (a one-time phase step of -offset instead).
func (s *PiServo) Sample(offset int64, localTs uint64) (float64, State) {
	var ppb float64
	state := s.state

	log.Debugf("servo %s %d.%09d drift %.2f", s.state, localTs/uint64(nsPerSec), localTs%uint64(nsPerSec), s.drift)

	switch s.state {
	case StateInit0:
		// start from a known baseline, frequency zeroed
		ppb = 0.0
		s.state = StateInit1
	case StateInit1:
		s.state = StateMeasure
	case StateMeasure:
		delta := int64(localTs - s.lastTs)
		measured := delta - nsPerSec
		s.drift = float64(measured)
		ppb = float64(measured)
		s.state = StateStep
	case StateStep:
		s.state = StateTracking
	case StateTracking:
		kiTerm := s.cfg.Ki * float64(offset)
		ppb = s.cfg.Kp*float64(offset) + s.drift + kiTerm
		if ppb < -s.maxFreq {
			ppb = -s.maxFreq
		} else if ppb > s.maxFreq {
			ppb = s.maxFreq
		} else {
			// the integral accumulates only when the output is not
			// saturated, otherwise windup causes overshoot on recovery
			s.drift += kiTerm
		}
	}
	s.lastTs = localTs

	return ppb, state
}
