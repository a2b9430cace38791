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

// Package pps reads pulse-per-second assert events from Linux PPS
// character devices (/dev/ppsN) via the PPS_FETCH ioctl.
package pps

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/vtolstov/go-ioctl"
	"golang.org/x/sys/unix"
)

// Missing from sys/unix package, defined in Linux include/uapi/linux/pps.h
const (
	ppsMagic       = 'p'
	ppsTimeInvalid = uint32(1 << 0)
)

// ioctlPPSFetch is an IOCTL to block until the next PPS event
var ioctlPPSFetch = ioctl.IOWR(ppsMagic, 0xa4, unsafe.Sizeof(FData{}))

// ErrTimeout is returned when no PPS edge arrived within the timeout
var ErrTimeout = errors.New("timed out waiting for PPS edge")

// KTime is struct pps_ktime from linux/pps.h
type KTime struct {
	Sec   int64
	Nsec  int32
	Flags uint32
}

// KInfo is struct pps_kinfo from linux/pps.h
type KInfo struct {
	AssertSequence uint32
	ClearSequence  uint32
	AssertTu       KTime
	ClearTu        KTime
	CurrentMode    int32
}

// FData is struct pps_fdata from linux/pps.h
type FData struct {
	Info    KInfo
	Timeout KTime
}

// Device represents a PPS device
type Device os.File

// Open opens PPS device at the given path
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening PPS device %q: %w", path, err)
	}
	return FromFile(f), nil
}

// FromFile returns a PPS device from an opened file
func FromFile(f *os.File) *Device {
	return (*Device)(f)
}

// File returns the underlying os.File
func (dev *Device) File() *os.File {
	return (*os.File)(dev)
}

// Close closes the underlying device file
func (dev *Device) Close() error {
	return dev.File().Close()
}

// Fetch blocks until the next PPS assert edge and returns its timestamp.
// The wait is bounded by the given timeout, after which ErrTimeout is
// returned so a silent signal source cannot stall the caller forever.
func (dev *Device) Fetch(timeout time.Duration) (time.Time, error) {
	data := FData{
		Timeout: KTime{
			Sec:   int64(timeout / time.Second),
			Nsec:  int32(timeout % time.Second),
			Flags: ^ppsTimeInvalid,
		},
	}
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		dev.File().Fd(),
		ioctlPPSFetch,
		uintptr(unsafe.Pointer(&data)),
	)
	if errno == unix.ETIMEDOUT {
		return time.Time{}, ErrTimeout
	}
	if errno != 0 {
		return time.Time{}, fmt.Errorf("ioctl PPS_FETCH on %s: %w", dev.File().Name(), errno)
	}
	return time.Unix(data.Info.AssertTu.Sec, int64(data.Info.AssertTu.Nsec)), nil
}
