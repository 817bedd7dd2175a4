// Package metrics exports worker pool activity as Prometheus metrics
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jzx17/calcpool/pkg/types"
	"github.com/jzx17/calcpool/pkg/worker"
)

const (
	namespace = "calcpool"
	subsystem = "pool"
)

// StatsSource is implemented by worker pools
type StatsSource interface {
	Stats() types.WorkerPoolStats
}

// Collector records pool events into its own registry
type Collector struct {
	registry *prometheus.Registry

	TasksSubmitted prometheus.Counter
	TasksRejected  prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksPanicked  prometheus.Counter
	TaskDuration   prometheus.Histogram
	BusyWorkers    prometheus.Gauge
	RunningWorkers prometheus.Gauge
}

// NewCollector creates a collector with Go runtime and process metrics registered
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}),
		TasksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_rejected_total",
			Help:      "Total number of tasks rejected (pool shut down or queue full)",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that finished without error",
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}),
		TasksPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_panicked_total",
			Help:      "Total number of tasks that panicked",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_duration_seconds",
			Help:      "Duration of task execution in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a task",
		}),
		RunningWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "running_workers",
			Help:      "Number of worker goroutines that have not terminated",
		}),
	}

	c.registry.MustRegister(
		c.TasksSubmitted,
		c.TasksRejected,
		c.TasksCompleted,
		c.TasksFailed,
		c.TasksPanicked,
		c.TaskDuration,
		c.BusyWorkers,
		c.RunningWorkers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the registry holding every collector metric
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// WatchPool exports pool size and queue length, read from pool on every scrape
func (c *Collector) WatchPool(pool StatsSource) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "size",
			Help:      "Number of workers in the pool",
		}, func() float64 {
			return float64(pool.Stats().PoolSize)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_length",
			Help:      "Number of tasks waiting for a worker",
		}, func() float64 {
			return float64(pool.Stats().QueueLength)
		}),
	)
}

func (c *Collector) TaskSubmitted(string) {
	c.TasksSubmitted.Inc()
}

func (c *Collector) TaskRejected(string, error) {
	c.TasksRejected.Inc()
}

func (c *Collector) TaskStarted(int, string) {
	c.BusyWorkers.Inc()
}

func (c *Collector) TaskFinished(_ int, _ string, duration time.Duration, err error) {
	c.BusyWorkers.Dec()
	c.TaskDuration.Observe(duration.Seconds())

	switch {
	case err == nil:
		c.TasksCompleted.Inc()
	case types.IsPanic(err):
		c.TasksFailed.Inc()
		c.TasksPanicked.Inc()
	default:
		c.TasksFailed.Inc()
	}
}

func (c *Collector) WorkerStarted(int) {
	c.RunningWorkers.Inc()
}

func (c *Collector) WorkerStopped(int) {
	c.RunningWorkers.Dec()
}

var _ worker.Observer = (*Collector)(nil)
