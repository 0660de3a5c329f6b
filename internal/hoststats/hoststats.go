// Package hoststats samples host CPU/memory usage for the heartbeat
// payloads the scheduler and the monitor write on every tick (spec
// §1.X ambient metrics/health).
package hoststats

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is a point-in-time host resource reading.
type Sample struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// Read takes an instantaneous (non-blocking) CPU and memory reading. CPU
// sampling errors are swallowed (0% reported) since a heartbeat must
// never fail because host metrics are briefly unavailable.
func Read() Sample {
	var s Sample

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemPercent = vm.UsedPercent
	}

	return s
}
