package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MetricsManager is a singleton owning the registry and the system metrics
type MetricsManager struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	goGoroutines    prometheus.Gauge
	goMaxProcs      prometheus.Gauge
	goHeapAlloc     prometheus.Gauge
	goHeapSys       prometheus.Gauge
	goGCPauseNs     prometheus.Histogram
	goGCCPUFraction prometheus.Gauge

	processOpenFDs   prometheus.Gauge
	processRSSBytes  prometheus.Gauge
	processStartTime prometheus.Gauge

	registry *prometheus.Registry

	initialized bool
	mu          sync.RWMutex
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the singleton instance of MetricsManager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
		}
	})
	return instance
}

// GetRegistry returns the registry every metric family is registered with.
func GetRegistry() *prometheus.Registry {
	return GetInstance().registry
}

// InitializeMetrics creates and registers the system metrics (thread-safe)
func (mm *MetricsManager) InitializeMetrics() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.initialized {
		return
	}

	mm.systemCPUUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Current CPU usage percentage",
		},
		[]string{"core"},
	)

	mm.systemMemoryUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
		[]string{"type"},
	)

	mm.goGoroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_goroutines",
			Help: "Number of goroutines that currently exist",
		},
	)

	mm.goMaxProcs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_maxprocs",
			Help: "Value of GOMAXPROCS",
		},
	)

	mm.goHeapAlloc = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Heap memory usage in bytes",
		},
	)

	mm.goHeapSys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_heap_sys_bytes",
			Help: "Heap memory reserved in bytes",
		},
	)

	mm.goGCPauseNs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "go_gc_pause_nanoseconds",
			Help:    "GC pause time in nanoseconds",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
		},
	)

	mm.goGCCPUFraction = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_gc_cpu_fraction",
			Help: "Fraction of CPU time used by GC",
		},
	)

	mm.processOpenFDs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_open_fds",
			Help: "Number of open file descriptors",
		},
	)

	mm.processRSSBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_resident_memory_bytes",
			Help: "Resident memory size in bytes",
		},
	)

	mm.processStartTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_start_time_seconds",
			Help: "Start time of the process since unix epoch in seconds",
		},
	)

	mm.registry.MustRegister(
		mm.systemCPUUsage,
		mm.systemMemoryUsage,
		mm.goGoroutines,
		mm.goMaxProcs,
		mm.goHeapAlloc,
		mm.goHeapSys,
		mm.goGCPauseNs,
		mm.goGCCPUFraction,
		mm.processOpenFDs,
		mm.processRSSBytes,
		mm.processStartTime,
	)

	mm.initialized = true
}

// StartSystemMetrics collects system metrics every interval until ctx is done.
// It does nothing unless system metrics are enabled.
func StartSystemMetrics(ctx context.Context, interval time.Duration) {
	if !SystemEnabled() {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	mm := GetInstance()
	mm.InitializeMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		mm.collect()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.collect()
			}
		}
	}()
}

func (mm *MetricsManager) collect() {
	mm.collectSystemMetrics()
	mm.collectGoRuntimeMetrics()
	mm.collectProcessMetrics()
}

// collectSystemMetrics collects host-level metrics
func (mm *MetricsManager) collectSystemMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			mm.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		mm.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		mm.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
		mm.systemMemoryUsage.WithLabelValues("free").Set(float64(vmstat.Free))
	}
}

// collectGoRuntimeMetrics collects Go runtime metrics
func (mm *MetricsManager) collectGoRuntimeMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.goGoroutines.Set(float64(runtime.NumGoroutine()))
	mm.goMaxProcs.Set(float64(runtime.GOMAXPROCS(0)))
	mm.goHeapAlloc.Set(float64(m.HeapAlloc))
	mm.goHeapSys.Set(float64(m.HeapSys))
	mm.goGCPauseNs.Observe(float64(m.PauseNs[(m.NumGC+255)%256]))
	mm.goGCCPUFraction.Set(m.GCCPUFraction)
}

func (mm *MetricsManager) collectProcessMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	if fds, err := proc.NumFDs(); err == nil {
		mm.processOpenFDs.Set(float64(fds))
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		mm.processRSSBytes.Set(float64(memInfo.RSS))
	}
	if created, err := proc.CreateTime(); err == nil {
		mm.processStartTime.Set(float64(created) / 1000)
	}
}
