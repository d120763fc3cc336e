package health

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// systemSampler reads live resource usage via gopsutil.
type systemSampler struct {
	diskPath    string
	cpuInterval time.Duration
}

func newSystemSampler() *systemSampler {
	return &systemSampler{
		diskPath:    "/",
		cpuInterval: 100 * time.Millisecond,
	}
}

// Sample implements ResourceSampler.
func (s *systemSampler) Sample() (ResourceUsage, error) {
	cpuPercents, err := cpu.Percent(s.cpuInterval, false)
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("sample cpu: %w", err)
	}
	var cpuPercent float64
	if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("sample memory: %w", err)
	}

	du, err := disk.Usage(s.diskPath)
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("sample disk: %w", err)
	}

	return ResourceUsage{
		CPUPercent:    cpuPercent,
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
	}, nil
}
