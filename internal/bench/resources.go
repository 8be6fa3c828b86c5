package bench

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

// ResourceUsage is a point-in-time sample of process memory.
type ResourceUsage struct {
	MemoryRSS           uint64  `json:"memory_rss"`
	MemoryVMS           uint64  `json:"memory_vms"`
	HeapAlloc           uint64  `json:"heap_alloc"`
	HeapObjects         uint64  `json:"heap_objects"`
	SystemMemoryPercent float64 `json:"system_memory_percent"`
	GoroutineCount      int     `json:"goroutines"`
	ThreadCount         int32   `json:"threads"`
}

// ResourceMonitor samples the current process
type ResourceMonitor struct {
	process *process.Process
}

// NewResourceMonitor creates a monitor for this process.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to open process")
	}
	return &ResourceMonitor{process: proc}, nil
}

// Usage samples process RSS/VMS, Go heap and system memory. Fields the
// platform cannot report are left zero.
func (rm *ResourceMonitor) Usage() (*ResourceUsage, error) {
	memInfo, err := rm.process.MemoryInfo()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	usage := &ResourceUsage{
		MemoryRSS:      memInfo.RSS,
		MemoryVMS:      memInfo.VMS,
		HeapAlloc:      ms.HeapAlloc,
		HeapObjects:    ms.HeapObjects,
		GoroutineCount: runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vm.UsedPercent
	}
	usage.ThreadCount, _ = rm.process.NumThreads()
	return usage, nil
}
