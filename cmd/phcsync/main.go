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

package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timetools/phcsync/daemon"

	_ "net/http/pprof"
)

func doWork(cfg *daemon.Config) error {
	stats := daemon.NewStats()
	go stats.Start(cfg.MonitoringPort, cfg.MetricsAggregationWindow)
	d, err := daemon.New(cfg, stats)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return d.Run(ctx)
}

func main() {
	var (
		verboseFlag        bool
		configFlag         string
		pprofFlag          string
		dstFlag            string
		srcFlag            string
		ifaceFlag          string
		ppsFlag            string
		readDelayFlag      time.Duration
		intervalFlag       time.Duration
		kpFlag             float64
		kiFlag             float64
		maxFreqFlag        float64
		freeRunningFlag    bool
		monitoringPortFlag int
	)
	defaults := daemon.DefaultConfig()

	flag.BoolVar(&verboseFlag, "verbose", false, "verbose output")
	flag.StringVar(&configFlag, "config", "", "path to the config")
	flag.StringVar(&pprofFlag, "pprof", "", "Address to have the profiler listen on, disabled if empty.")
	flag.StringVar(&dstFlag, "destination", defaults.DestinationClock, "PHC device to discipline, system clock if empty")
	flag.StringVar(&srcFlag, "source", defaults.SourceClock, "master PHC device to read the time from")
	flag.StringVar(&ifaceFlag, "iface", defaults.Iface, "network interface to resolve the master PHC from")
	flag.StringVar(&ppsFlag, "pps", defaults.PPSDevice, "PPS device to pace the loop with, i.e. /dev/pps0")
	flag.DurationVar(&readDelayFlag, "readdelay", defaults.ReadDelay, "compensation for the master clock read latency")
	flag.DurationVar(&intervalFlag, "interval", defaults.Interval, "how often to sample the clocks")
	flag.Float64Var(&kpFlag, "kp", defaults.KP, "proportional gain of the PI servo")
	flag.Float64Var(&kiFlag, "ki", defaults.KI, "integral gain of the PI servo")
	flag.Float64Var(&maxFreqFlag, "maxfreq", defaults.MaxFreqPPB, "servo frequency clamp in PPB, 0 means the built-in default")
	flag.BoolVar(&freeRunningFlag, "freerunning", defaults.FreeRunning, "observe offsets without adjusting the clock")
	flag.IntVar(&monitoringPortFlag, "monitoringport", defaults.MonitoringPort, "port to start monitoring http server on")

	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	log.SetLevel(log.InfoLevel)
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	cfg := defaults
	if configFlag != "" {
		var err error
		cfg, err = daemon.ReadConfig(configFlag)
		if err != nil {
			log.Fatalf("reading config: %v", err)
		}
	}
	// command line flags win over the config file
	if setFlags["destination"] {
		cfg.DestinationClock = dstFlag
	}
	if setFlags["source"] {
		cfg.SourceClock = srcFlag
	}
	if setFlags["iface"] {
		cfg.Iface = ifaceFlag
	}
	if setFlags["pps"] {
		cfg.PPSDevice = ppsFlag
	}
	if setFlags["readdelay"] {
		cfg.ReadDelay = readDelayFlag
	}
	if setFlags["interval"] {
		cfg.Interval = intervalFlag
	}
	if setFlags["kp"] {
		cfg.KP = kpFlag
	}
	if setFlags["ki"] {
		cfg.KI = kiFlag
	}
	if setFlags["maxfreq"] {
		cfg.MaxFreqPPB = maxFreqFlag
	}
	if setFlags["freerunning"] {
		cfg.FreeRunning = freeRunningFlag
	}
	if setFlags["monitoringport"] {
		cfg.MonitoringPort = monitoringPortFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config is invalid: %v", err)
	}

	if pprofFlag != "" {
		go func() {
			if err := http.ListenAndServe(pprofFlag, nil); err != nil {
				log.Errorf("Failed to start pprof. Err: %v", err)
			}
		}()
	}

	if err := doWork(cfg); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
