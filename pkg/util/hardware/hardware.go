package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/lk2023060901/rbmarshal-go/pkg/log"
)

var (
	icOnce sync.Once
	ic     bool
	icErr  error
)

// GetCPUNum 返回当前进程可用的 CPU 数。
// 以 GOMAXPROCS 为准，容器内由 automaxprocs 修正后即为配额。
func GetCPUNum() int {
	cur := runtime.GOMAXPROCS(0)
	if cur <= 0 {
		cur = runtime.NumCPU()
	}
	return cur
}

// GetPhysicalCPUNum 返回主机物理核心数，获取失败时退回逻辑核数。
func GetPhysicalCPUNum() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// InContainer 判断进程是否运行在设置了内存限制的 cgroup 中。
func InContainer() (bool, error) {
	icOnce.Do(func() {
		ic, icErr = inContainer()
	})
	return ic, icErr
}

// GetMemoryCount 返回可用内存总量（字节）。
// 容器内取 cgroup 限制与主机内存的较小值。
func GetMemoryCount() uint64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get host memory", zap.Error(err))
		return 0
	}
	if ok, _ := InContainer(); !ok {
		return stats.Total
	}
	limit, err := getContainerMemLimit()
	if err != nil {
		log.Warn("failed to get container memory limit", zap.Error(err))
		return stats.Total
	}
	if limit > 0 && limit < stats.Total {
		return limit
	}
	return stats.Total
}

// GetFreeMemoryCount 返回当前可用的空闲内存（字节）。
func GetFreeMemoryCount() uint64 {
	total := GetMemoryCount()
	used := GetUsedMemoryCount()
	if used >= total {
		return 0
	}
	return total - used
}

// GetUsedMemoryCount 返回已使用的内存（字节），容器内取 cgroup 统计值。
func GetUsedMemoryCount() uint64 {
	if ok, _ := InContainer(); ok {
		used, err := getContainerMemUsed()
		if err == nil {
			return used
		}
		log.Warn("failed to get container memory usage", zap.Error(err))
	}
	stats, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("failed to get host memory", zap.Error(err))
		return 0
	}
	return stats.Total - stats.Available
}
