//go:build linux

package hardware

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/containerd/cgroups/v3"
	"github.com/containerd/cgroups/v3/cgroup2"
)

// 只识别 cgroup v2，v1 主机按非容器处理。
func inContainer() (bool, error) {
	if cgroups.Mode() != cgroups.Unified {
		return false, nil
	}
	limit, err := getContainerMemLimit()
	if err != nil {
		return false, err
	}
	return limit > 0 && limit != math.MaxUint64, nil
}

func loadStats() (*cgroup2.Manager, error) {
	manager, err := cgroup2.Load("/")
	if err != nil {
		return nil, errors.Wrap(err, "load cgroup2")
	}
	return manager, nil
}

func getContainerMemLimit() (uint64, error) {
	manager, err := loadStats()
	if err != nil {
		return 0, err
	}
	stats, err := manager.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat cgroup2")
	}
	if stats.GetMemory() == nil {
		return 0, errors.New("cgroup2 memory controller not enabled")
	}
	return stats.GetMemory().GetUsageLimit(), nil
}

func getContainerMemUsed() (uint64, error) {
	manager, err := loadStats()
	if err != nil {
		return 0, err
	}
	stats, err := manager.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat cgroup2")
	}
	if stats.GetMemory() == nil {
		return 0, errors.New("cgroup2 memory controller not enabled")
	}
	return stats.GetMemory().GetUsage(), nil
}
