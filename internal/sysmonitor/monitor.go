// Package sysmonitor periodically samples system-wide CPU usage and the Go
// runtime's memory obtained from the OS (runtime.MemStats.Sys) and
// exposes a safety valve the transport's accept loop can consult to shed
// load under sustained overload.
package sysmonitor

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/metrics"
)

// Monitor samples system resource usage on a ticker and republishes it as
// Prometheus gauges.
type Monitor struct {
	cfg     config.ResourceConfig
	metrics *metrics.Registry

	cpuPercent atomic.Value // float64
	rssBytes   atomic.Uint64
}

// New builds a Monitor from cfg. Call Run in its own goroutine.
func New(cfg config.ResourceConfig, metricsRegistry *metrics.Registry) *Monitor {
	m := &Monitor{cfg: cfg, metrics: metricsRegistry}
	m.cpuPercent.Store(0.0)
	return m
}

// Run samples resource usage until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.SampleInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.cpuPercent.Store(percents[0])
		if m.metrics != nil {
			m.metrics.Resource.CPUPercent.Set(percents[0])
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.rssBytes.Store(mem.Sys)
	if m.metrics != nil {
		m.metrics.Resource.RSSBytes.Set(float64(mem.Sys))
	}
}

// ShouldShed reports whether the transport should stop accepting new
// connections because the process is under sustained overload.
func (m *Monitor) ShouldShed() bool {
	cpuPercent, _ := m.cpuPercent.Load().(float64)
	if m.cfg.MaxCPUPercent > 0 && cpuPercent > m.cfg.MaxCPUPercent {
		return true
	}
	if m.cfg.MaxRSSBytes > 0 && m.rssBytes.Load() > m.cfg.MaxRSSBytes {
		return true
	}
	return false
}
