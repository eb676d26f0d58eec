// 本文件用于采集本进程资源快照 供健康检查展示
package sysinfo

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"carlos-assist/internal/models"
)

const defaultCacheTTL = 2 * time.Second

// Options 用于配置采集器的默认行为
type Options struct {
	CacheTTL time.Duration
}

// Collector 负责采集进程资源快照 短时间内重复调用直接复用缓存
type Collector struct {
	mu       sync.Mutex
	cacheTTL time.Duration
	proc     *process.Process
	started  time.Time
	now      func() time.Time

	last   models.ProcessStats
	lastAt time.Time
}

func NewCollector(opts Options) *Collector {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c := &Collector{
		cacheTTL: ttl,
		started:  time.Now(),
		now:      time.Now,
	}
	// 拿不到进程句柄时只返回 Go 运行时指标
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = proc
	}
	return c
}

// Process 返回当前进程快照
func (c *Collector) Process() models.ProcessStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.lastAt.IsZero() && now.Sub(c.lastAt) < c.cacheTTL {
		return c.last
	}
	uptime := now.Sub(c.started)
	stats := models.ProcessStats{
		PID:           int32(os.Getpid()),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(uptime.Seconds()),
		Uptime:        formatDuration(uptime),
		RSSLabel:      "--",
	}
	if c.proc != nil {
		if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
			stats.RSSBytes = info.RSS
			stats.RSSLabel = formatBytes(float64(info.RSS))
		}
		if pct, err := c.proc.CPUPercent(); err == nil {
			stats.CPUPercent = roundPct(pct)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		stats.HostMemPct = roundPct(vm.UsedPercent)
	}
	c.last = stats
	c.lastAt = now
	return stats
}
