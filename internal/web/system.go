package web

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot is a coarse view of host and process load. Host fields are
// omitted when the platform cannot report them.
type SystemSnapshot struct {
	Goroutines     int      `json:"goroutines"`
	AllocMB        uint64   `json:"alloc_mb"`
	SysMB          uint64   `json:"sys_mb"`
	NumGC          uint32   `json:"num_gc"`
	CPUPercent     *float64 `json:"cpu_percent,omitempty"`
	MemUsedPercent *float64 `json:"mem_used_percent,omitempty"`
	Load1          *float64 `json:"load1,omitempty"`
}

func snapshotSystem() SystemSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := SystemSnapshot{
		Goroutines: runtime.NumGoroutine(),
		AllocMB:    m.Alloc / (1024 * 1024),
		SysMB:      m.Sys / (1024 * 1024),
		NumGC:      m.NumGC,
	}
	// Zero interval compares against the previous call instead of sleeping.
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = &pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemUsedPercent = &vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		snap.Load1 = &avg.Load1
	}
	return snap
}
