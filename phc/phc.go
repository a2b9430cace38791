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

// Package phc provides access to PTP Hardware Clocks exposed as
// /dev/ptpN character devices: reading and setting time, frequency
// and phase adjustments, and mapping network interfaces to their
// associated PHC device.
package phc

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/timetools/phcsync/clock"
)

// DefaultMaxClockFreqPPB value came from linuxptp project (clockadj.c)
const DefaultMaxClockFreqPPB = 500000.0

// FDToClockID converts file descriptor number to clockID.
// see man(3) clock_gettime, FD_TO_CLOCKID macro
func FDToClockID(fd uintptr) int32 {
	return int32((int(^fd) << 3) | 3)
}

// Device represents a PHC device
type Device os.File

// Open opens PHC device at the given path
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening PHC device %q: %w", path, err)
	}
	return FromFile(f), nil
}

// FromFile returns a PHC device from an opened file
func FromFile(f *os.File) *Device {
	return (*Device)(f)
}

// File returns the underlying os.File
func (dev *Device) File() *os.File {
	return (*os.File)(dev)
}

// Fd returns the underlying file descriptor
func (dev *Device) Fd() uintptr {
	return dev.File().Fd()
}

// ClockID derives the clockid usable with clock_* syscalls
func (dev *Device) ClockID() int32 {
	return FDToClockID(dev.Fd())
}

// Close closes the underlying device file
func (dev *Device) Close() error {
	return dev.File().Close()
}

// Time returns current time of the PHC
func (dev *Device) Time() (time.Time, error) {
	return clock.Time(dev.ClockID())
}

// SetTime sets the PHC to the given time
func (dev *Device) SetTime(t time.Time) error {
	return clock.SetTime(dev.ClockID(), t)
}

// AdjFreqPPB adjusts PHC frequency in PPB
func (dev *Device) AdjFreqPPB(freqPPB float64) error {
	state, err := clock.AdjFreqPPB(dev.ClockID(), freqPPB)
	if err == nil && state != unix.TIME_OK {
		return fmt.Errorf("clock %q state %d is not TIME_OK", dev.File().Name(), state)
	}
	return err
}

// Step steps PHC clock by given step
func (dev *Device) Step(step time.Duration) error {
	state, err := clock.Step(dev.ClockID(), step)
	if err == nil && state != unix.TIME_OK {
		return fmt.Errorf("clock %q state %d is not TIME_OK", dev.File().Name(), state)
	}
	return err
}

// FrequencyPPB returns current PHC frequency
func (dev *Device) FrequencyPPB() (float64, error) {
	freqPPB, state, err := clock.FrequencyPPB(dev.ClockID())
	if err == nil && state != unix.TIME_OK {
		return freqPPB, fmt.Errorf("clock %q state %d is not TIME_OK", dev.File().Name(), state)
	}
	return freqPPB, err
}

// MaxFreqPPB returns maximum frequency adjustment supported by the PHC
func (dev *Device) MaxFreqPPB() (float64, error) {
	freqPPB, _, err := clock.MaxFreqPPB(dev.ClockID())
	if err != nil {
		return DefaultMaxClockFreqPPB, err
	}
	return freqPPB, nil
}

// IfaceToPHCDevice returns path to PHC device associated with given network card iface
func IfaceToPHCDevice(iface string) (string, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return "", fmt.Errorf("failed to create socket for ioctl: %w", err)
	}
	defer unix.Close(fd)
	info, err := unix.IoctlGetEthtoolTsInfo(fd, iface)
	if err != nil {
		return "", fmt.Errorf("getting interface %s info: %w", iface, err)
	}
	if info.Phc_index < 0 {
		return "", fmt.Errorf("%s: no PHC support", iface)
	}
	return fmt.Sprintf("/dev/ptp%d", info.Phc_index), nil
}
