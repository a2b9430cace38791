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
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// CollectSysStats gathers process and runtime statistics into counters
func (s *Stats) CollectSysStats() error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	s.SetCounter("process.uptime", time.Now().Unix()-procStartTime.Unix())

	if val, err := proc.Percent(0); err == nil {
		s.SetCounter("process.cpu_pct", int64(val*100))
	}
	if val, err := proc.MemoryInfo(); err == nil {
		s.SetCounter("process.rss", int64(val.RSS))
		s.SetCounter("process.vms", int64(val.VMS))
		s.SetCounter("process.swap", int64(val.Swap))
	}
	if val, err := proc.NumFDs(); err == nil {
		s.SetCounter("process.num_fds", int64(val))
	}
	if val, err := proc.NumThreads(); err == nil {
		s.SetCounter("process.num_threads", int64(val))
	}

	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	s.SetCounter("runtime.cpu.goroutines", int64(runtime.NumGoroutine()))
	s.SetCounter("runtime.mem.alloc", int64(m.Alloc))
	s.SetCounter("runtime.mem.sys", int64(m.Sys))
	s.SetCounter("runtime.gc.total_runs", int64(m.NumGC))

	return nil
}
