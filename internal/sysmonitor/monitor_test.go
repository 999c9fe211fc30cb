package sysmonitor

import (
	"testing"

	"github.com/odin-mesh/routecore/internal/config"
)

func TestShouldShedRespectsThresholds(t *testing.T) {
	cfg := config.ResourceConfig{MaxCPUPercent: 50, MaxRSSBytes: 1000}
	m := New(cfg, nil)

	if m.ShouldShed() {
		t.Fatal("freshly created monitor should not shed before sampling")
	}

	m.cpuPercent.Store(75.0)
	if !m.ShouldShed() {
		t.Fatal("expected shed once CPU exceeds the configured threshold")
	}

	m.cpuPercent.Store(10.0)
	m.rssBytes.Store(2000)
	if !m.ShouldShed() {
		t.Fatal("expected shed once RSS exceeds the configured threshold")
	}
}

func TestShouldShedDisabledThresholdsNeverTrigger(t *testing.T) {
	cfg := config.ResourceConfig{}
	m := New(cfg, nil)
	m.cpuPercent.Store(99.9)
	m.rssBytes.Store(^uint64(0))

	if m.ShouldShed() {
		t.Fatal("zero-valued thresholds should be treated as disabled")
	}
}
