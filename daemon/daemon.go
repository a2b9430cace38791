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

// Package daemon drives the clock discipline cycle: wait for the next
// sample (PPS edge or fixed interval), measure the offset, feed the PI
// servo and apply its frequency or phase command to the disciplined clock.
package daemon

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timetools/phcsync/phc"
	"github.com/timetools/phcsync/pps"
	"github.com/timetools/phcsync/servo"
)

// Daemon owns the disciplined clock, the sampler and the servo,
// and runs the control loop until the context is cancelled
type Daemon struct {
	cfg     *Config
	dst     Clock
	src     TimeSource // nil unless a master clock is configured
	sampler Sampler
	pi      *servo.PiServo
	stats   StatsServer
}

// New creates a Daemon from validated config, opening all devices.
// Open failures here are fatal: the loop never starts with an invalid handle.
func New(cfg *Config, stats StatsServer) (*Daemon, error) {
	d := &Daemon{cfg: cfg, stats: stats}

	switch {
	case cfg.FreeRunning:
		log.Warning("operating in FreeRunning mode, will NOT adjust clock")
		d.dst = &FreeRunningClock{}
	case cfg.DestinationClock == "":
		d.dst = &SysClock{}
	default:
		dev, err := phc.Open(cfg.DestinationClock)
		if err != nil {
			return nil, err
		}
		d.dst = dev
	}

	srcPath := cfg.SourceClock
	if cfg.Iface != "" {
		var err error
		srcPath, err = phc.IfaceToPHCDevice(cfg.Iface)
		if err != nil {
			return nil, fmt.Errorf("failed to map iface to device: %w", err)
		}
	}
	if srcPath != "" {
		srcDev, err := phc.Open(srcPath)
		if err != nil {
			return nil, err
		}
		d.src = srcDev
	}

	if cfg.PPSDevice != "" {
		ppsDev, err := pps.Open(cfg.PPSDevice)
		if err != nil {
			return nil, err
		}
		d.sampler = NewPPSSampler(ppsDev)
	} else {
		d.sampler = NewPHCSampler(d.src, d.dst, cfg.ReadDelay, cfg.Interval)
	}

	d.pi = servo.NewPiServo(&servo.PiServoCfg{Kp: cfg.KP, Ki: cfg.KI})
	if cfg.MaxFreqPPB > 0 {
		d.pi.SetMaxFreq(cfg.MaxFreqPPB)
	}
	if maxFreq, err := d.dst.MaxFreqPPB(); err != nil {
		log.Warningf("max clock frequency unknown: %v", err)
	} else {
		log.Debugf("max clock frequency: %v ppb", maxFreq)
	}

	return d, nil
}

// align sets the destination clock from the master once at startup.
// Failures are logged and tolerated, the servo will discipline from
// wherever the clock happens to be.
func (d *Daemon) align() {
	if d.src == nil {
		return
	}
	now, err := d.src.Time()
	if err != nil {
		log.Errorf("reading master clock: %v", err)
		return
	}
	if err := d.dst.SetTime(now); err != nil {
		log.Errorf("setting destination clock: %v", err)
		return
	}
	log.Infof("aligned destination clock to %v", now)
}

// Run executes the control loop until ctx is cancelled. Transient
// sampling errors abandon the iteration and continue, they never
// terminate the loop: the signal source recovering on its own is the
// expected remediation.
func (d *Daemon) Run(ctx context.Context) error {
	d.align()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample, err := d.sampler.Sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warningf("skipping iteration: %v", err)
			d.stats.UpdateCounterBy("sampler.errors", 1)
			continue
		}
		d.stats.UpdateCounterBy("samples", 1)

		freqAdj, state := d.pi.Sample(sample.Offset, sample.Timestamp)
		log.Infof("offset %10d servo %s freq %+7.0f", sample.Offset, state, -freqAdj)
		d.stats.SetServo(sample.Offset, d.pi.MeanFreq(), -freqAdj, state)

		// apply failures are logged only: there is no feedback channel
		// to know whether a command took effect, so the servo state
		// advances as if it did
		switch state {
		case servo.StateInit1:
			// interval measurement bootstrap, no correction
		case servo.StateStep:
			step := -time.Duration(sample.Offset)
			log.Infof("stepping clock by %v", step)
			if err := d.dst.Step(step); err != nil {
				log.Errorf("failed to step clock by %v: %v", step, err)
				d.stats.UpdateCounterBy("adjustments.errors", 1)
			} else {
				d.stats.UpdateCounterBy("adjustments.step", 1)
			}
		default:
			if err := d.dst.AdjFreqPPB(-freqAdj); err != nil {
				log.Errorf("failed to adjust freq to %v: %v", -freqAdj, err)
				d.stats.UpdateCounterBy("adjustments.errors", 1)
			} else {
				d.stats.UpdateCounterBy("adjustments.freq", 1)
			}
		}
	}
}
