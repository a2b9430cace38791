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
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config specifies phcsync run options
type Config struct {
	// DestinationClock is the path of the PHC to discipline,
	// empty means CLOCK_REALTIME
	DestinationClock string `yaml:"destination_clock"`
	// SourceClock is the path of the master PHC device
	SourceClock string `yaml:"source_clock"`
	// Iface resolves the master PHC from a network interface instead
	Iface string `yaml:"iface"`
	// PPSDevice is the path of a PPS event source, i.e. /dev/pps0.
	// When set, PPS edges drive the loop instead of the fixed interval.
	PPSDevice string `yaml:"pps_device"`
	// ReadDelay compensates the known read latency of the master device.
	// Operator-supplied, never measured.
	ReadDelay time.Duration `yaml:"read_delay"`
	// Interval between direct-read samples
	Interval time.Duration `yaml:"interval"`
	// KP, KI are the PI controller gains
	KP float64 `yaml:"kp"`
	KI float64 `yaml:"ki"`
	// MaxFreqPPB overrides the servo frequency clamp when positive
	MaxFreqPPB float64 `yaml:"max_freq_ppb"`
	// FreeRunning observes without adjusting the clock
	FreeRunning bool `yaml:"free_running"`

	MonitoringPort           int           `yaml:"monitoring_port"`
	MetricsAggregationWindow time.Duration `yaml:"metrics_aggregation_window"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Interval:                 time.Second,
		KP:                       0.7,
		KI:                       0.3,
		MonitoringPort:           4269,
		MetricsAggregationWindow: time.Duration(60) * time.Second,
	}
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.KP <= 0 {
		return fmt.Errorf("kp must be greater than zero")
	}
	if c.KI <= 0 {
		return fmt.Errorf("ki must be greater than zero")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	if c.ReadDelay < 0 {
		return fmt.Errorf("read_delay must be 0 or positive")
	}
	if c.MaxFreqPPB < 0 {
		return fmt.Errorf("max_freq_ppb must be 0 or positive")
	}
	if c.SourceClock != "" && c.Iface != "" {
		return fmt.Errorf("source_clock and iface are mutually exclusive")
	}
	if c.PPSDevice == "" && c.SourceClock == "" && c.Iface == "" {
		return fmt.Errorf("either a PPS device or a master clock must be configured")
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoring_port must be 0 or positive")
	}
	if c.MetricsAggregationWindow <= 0 {
		return fmt.Errorf("metrics_aggregation_window must be greater than zero")
	}
	return nil
}
