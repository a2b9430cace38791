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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timetools/phcsync/clock"
	"github.com/timetools/phcsync/servo"
)

// Clock is the disciplined-clock capability: everything the control
// loop needs from the destination clock. Implemented by phc.Device,
// SysClock and FreeRunningClock.
type Clock interface {
	Time() (time.Time, error)
	SetTime(t time.Time) error
	AdjFreqPPB(freqPPB float64) error
	Step(step time.Duration) error
	MaxFreqPPB() (float64, error)
}

// SysClock disciplines CLOCK_REALTIME
type SysClock struct{}

// Time returns current system time
func (c *SysClock) Time() (time.Time, error) {
	return clock.Time(clock.Realtime)
}

// SetTime sets the system clock
func (c *SysClock) SetTime(t time.Time) error {
	return clock.SetTime(clock.Realtime, t)
}

// AdjFreqPPB adjusts system clock frequency.
// The returned clock state is ignored: CLOCK_REALTIME reports TIME_ERROR
// whenever STA_UNSYNC is set, which is the normal state for a clock we
// are still in the process of disciplining.
func (c *SysClock) AdjFreqPPB(freqPPB float64) error {
	_, err := clock.AdjFreqPPB(clock.Realtime, freqPPB)
	return err
}

// Step jumps the system clock by given step
func (c *SysClock) Step(step time.Duration) error {
	_, err := clock.Step(clock.Realtime, step)
	return err
}

// MaxFreqPPB returns maximum frequency adjustment supported by the system clock
func (c *SysClock) MaxFreqPPB() (float64, error) {
	freqPPB, _, err := clock.MaxFreqPPB(clock.Realtime)
	return freqPPB, err
}

// FreeRunningClock reports time but swallows all adjustments,
// used to observe what the servo would do without touching the clock
type FreeRunningClock struct{}

// Time returns current system time
func (c *FreeRunningClock) Time() (time.Time, error) {
	return time.Now(), nil
}

// SetTime does nothing
func (c *FreeRunningClock) SetTime(t time.Time) error {
	log.Debugf("would set clock to %v", t)
	return nil
}

// AdjFreqPPB does nothing
func (c *FreeRunningClock) AdjFreqPPB(freqPPB float64) error {
	log.Debugf("would adjust freq to %v ppb", freqPPB)
	return nil
}

// Step does nothing
func (c *FreeRunningClock) Step(step time.Duration) error {
	log.Debugf("would step clock by %v", step)
	return nil
}

// MaxFreqPPB returns the servo default
func (c *FreeRunningClock) MaxFreqPPB() (float64, error) {
	return servo.DefaultMaxFreqPPB, nil
}
