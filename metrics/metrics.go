// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package metrics exposes Prometheus collectors for the Handler and the
// internal/concurrent worker pool, in the Counter/Gauge wrapper shape the
// teacher's internal/concurrent/pool.go expects of its *statistics field
// (Incr/Decr/Get/UpdateDuration), but backed directly by
// github.com/prometheus/client_golang rather than the teacher's own
// unretrieved linmetrics registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter wraps a prometheus.Counter with the Incr() spelling the teacher's
// call sites use.
type Counter struct {
	c prometheus.Counter
}

func newCounter(name, help string, labels prometheus.Labels) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: labels})
	prometheus.MustRegister(c)
	return Counter{c: c}
}

// Incr increments the counter by one.
func (c Counter) Incr() {
	c.c.Inc()
}

// Gauge wraps a prometheus.Gauge, adding the integer Get() the teacher's
// pool dispatch loop uses to compare against maxWorkers.
type Gauge struct {
	g prometheus.Gauge
	v *int64Box
}

type int64Box struct {
	n int64
}

func newGauge(name, help string, labels prometheus.Labels) Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: labels})
	prometheus.MustRegister(g)
	return Gauge{g: g, v: &int64Box{}}
}

// Incr increments the gauge by one.
func (g Gauge) Incr() {
	g.v.n++
	g.g.Set(float64(g.v.n))
}

// Decr decrements the gauge by one.
func (g Gauge) Decr() {
	g.v.n--
	g.g.Set(float64(g.v.n))
}

// Get returns the gauge's current integer value.
func (g Gauge) Get() int64 {
	return g.v.n
}

// Reset sets the gauge back to zero, for callers that clear an entire
// queue at once rather than draining it one Decr at a time.
func (g Gauge) Reset() {
	g.v.n = 0
	g.g.Set(0)
}

// Timer wraps a prometheus.Histogram, observing durations in seconds.
type Timer struct {
	h prometheus.Histogram
}

func newTimer(name, help string, labels prometheus.Labels) Timer {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	})
	prometheus.MustRegister(h)
	return Timer{h: h}
}

// UpdateDuration records d in the histogram.
func (t Timer) UpdateDuration(d time.Duration) {
	t.h.Observe(d.Seconds())
}

// PoolStatistics is the per-pool counter/gauge bundle internal/concurrent's
// workerPool reports into; one instance per named pool.
type PoolStatistics struct {
	TasksConsumed      Counter
	TasksRejected      Counter
	TasksPanic         Counter
	TasksFailed        Counter
	TasksWaitingTime   Timer
	TasksExecutingTime Timer

	WorkersAlive   Gauge
	WorkersCreated Counter
	WorkersKilled  Counter
}

// NewPoolStatistics registers a PoolStatistics for a pool named name. Each
// pool name must be unique within the process: Prometheus panics (via
// MustRegister) on a duplicate registration, which is the desired fail-fast
// behavior for a programming error.
func NewPoolStatistics(name string) *PoolStatistics {
	labels := prometheus.Labels{"pool": name}
	return &PoolStatistics{
		TasksConsumed:      newCounter("taskloop_pool_tasks_consumed_total", "Total tasks executed by the pool.", labels),
		TasksRejected:      newCounter("taskloop_pool_tasks_rejected_total", "Total tasks rejected (context done before a slot opened).", labels),
		TasksPanic:         newCounter("taskloop_pool_tasks_panic_total", "Total tasks that panicked during execution.", labels),
		TasksFailed:        newCounter("taskloop_pool_tasks_failed_total", "Total tasks whose handle returned a non-nil error without panicking.", labels),
		TasksWaitingTime:   newTimer("taskloop_pool_task_waiting_seconds", "Time a task spent queued before a worker picked it up.", labels),
		TasksExecutingTime: newTimer("taskloop_pool_task_executing_seconds", "Time a task spent running, including the wait.", labels),
		WorkersAlive:       newGauge("taskloop_pool_workers_alive", "Current number of live worker goroutines.", labels),
		WorkersCreated:     newCounter("taskloop_pool_workers_created_total", "Total worker goroutines ever created.", labels),
		WorkersKilled:      newCounter("taskloop_pool_workers_killed_total", "Total worker goroutines stopped on idle timeout or pool shutdown.", labels),
	}
}

// HandlerStatistics is the per-Handler gauge/counter bundle.
type HandlerStatistics struct {
	ImmediateDepth Gauge
	TimedDepth     Gauge
	Posted         Counter
	Dispatched     Counter
	Retries        Counter
}

// NewHandlerStatistics registers a HandlerStatistics for a Handler named name.
func NewHandlerStatistics(name string) *HandlerStatistics {
	labels := prometheus.Labels{"handler": name}
	return &HandlerStatistics{
		ImmediateDepth: newGauge("taskloop_handler_immediate_depth", "Current depth of the immediate LIFO queue.", labels),
		TimedDepth:     newGauge("taskloop_handler_timed_depth", "Current depth of the timed queue.", labels),
		Posted:         newCounter("taskloop_handler_posted_total", "Total Requests posted to the Handler.", labels),
		Dispatched:     newCounter("taskloop_handler_dispatched_total", "Total Requests returned ready by Next.", labels),
		Retries:        newCounter("taskloop_handler_retries_total", "Total Next calls that had to retry after a refused Ready.", labels),
	}
}
