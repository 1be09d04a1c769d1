package controller

import (
	"runtime"
	"syscall"
	"time"

	"github.com/pbnjay/memory"
)

// sampler reads process resource usage. CPU utilization is derived from
// getrusage deltas between consecutive samples.
type sampler struct {
	lastWall time.Time
	lastCPU  time.Duration
}

func newSampler() *sampler {
	s := &sampler{}
	s.lastWall = time.Now()
	s.lastCPU = processCPUTime()
	return s
}

// Snapshot reads current usage and advances the CPU baseline.
func (s *sampler) Snapshot() ResourceSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := time.Now()
	cpu := processCPUTime()
	wallDelta := now.Sub(s.lastWall)
	cpuDelta := cpu - s.lastCPU
	s.lastWall = now
	s.lastCPU = cpu

	var cpuPercent float64
	if wallDelta > 0 {
		cpuPercent = float64(cpuDelta) / float64(wallDelta) / float64(runtime.NumCPU()) * 100
	}

	return ResourceSnapshot{
		HeapMB:        float64(ms.HeapAlloc) / (1 << 20),
		SysMB:         float64(ms.Sys) / (1 << 20),
		TotalSystemMB: float64(memory.TotalMemory()) / (1 << 20),
		CPUPercent:    cpuPercent,
		Goroutines:    runtime.NumGoroutine(),
	}
}

func processCPUTime() time.Duration {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return timevalDuration(ru.Utime) + timevalDuration(ru.Stime)
}

func timevalDuration(tv syscall.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}
