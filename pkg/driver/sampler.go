package driver

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

// Sampler reads host resource usage for heartbeat payloads (spec.md §4.3,
// grounded on beemesh-beemesh's main.go cpu/mem sampling loop, extended
// here with disk usage since the wire format carries all three).
type Sampler struct {
	DiskPath string // defaults to "/" if empty
	Capacity int    // max containers this worker will accept
}

// NewSampler builds a sampler rooted at "/" with the given container
// capacity.
func NewSampler(capacity int) *Sampler {
	return &Sampler{DiskPath: "/", Capacity: capacity}
}

// Sample takes one point-in-time reading. containerCount is supplied by
// the caller (the agent tracks its own deployed containers) rather than
// queried here, since that count has nothing to do with host resources.
func (s *Sampler) Sample(ctx context.Context, containerCount int) (models.ResourceSample, error) {
	path := s.DiskPath
	if path == "" {
		path = "/"
	}

	cpuPercent, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return models.ResourceSample{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.ResourceSample{}, err
	}
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return models.ResourceSample{}, err
	}

	var cp float64
	if len(cpuPercent) > 0 {
		cp = cpuPercent[0]
	}

	return models.ResourceSample{
		CPUPercent:     cp,
		MemPercent:     vm.UsedPercent,
		DiskPercent:    du.UsedPercent,
		ContainerCount: containerCount,
		Capacity:       s.Capacity,
	}, nil
}
