// Copyright (c) 2026 The dataplatform Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "spark"

// Collector captures session, job and task metrics. A nil Collector is valid
// and records nothing.
type Collector struct {
	registry           *prometheus.Registry
	sessionsTotal      *prometheus.CounterVec
	jobsTotal          *prometheus.CounterVec
	tasksTotal         *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	taskDuration       *prometheus.HistogramVec
	executorsRequested prometheus.Gauge
	executorsRunning   prometheus.Gauge
	rowsWritten        *prometheus.CounterVec
}

// NewCollector initializes a new metrics registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	collector := &Collector{
		registry: registry,
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "sessions_total", Help: "Total number of sessions created"},
			[]string{"master"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "jobs_total", Help: "Total number of jobs"},
			[]string{"status"},
		),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tasks_total", Help: "Total number of tasks"},
			[]string{"executor", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Job duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"status"},
		),
		executorsRequested: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "executors_requested", Help: "Executors requested from the cluster manager"},
		),
		executorsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "executors_running", Help: "Executors observed running"},
		),
		rowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "rows_written_total", Help: "Rows written by DataFrame writers"},
			[]string{"format"},
		),
	}

	registry.MustRegister(
		collector.sessionsTotal,
		collector.jobsTotal,
		collector.tasksTotal,
		collector.jobDuration,
		collector.taskDuration,
		collector.executorsRequested,
		collector.executorsRunning,
		collector.rowsWritten,
	)
	return collector
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveSession records a created session.
func (c *Collector) ObserveSession(masterKind string) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(masterKind).Inc()
}

// ObserveJob records a job outcome.
func (c *Collector) ObserveJob(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(status).Inc()
	c.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveTask records a task outcome.
func (c *Collector) ObserveTask(executor, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.tasksTotal.WithLabelValues(executor, status).Inc()
	c.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetExecutors records the requested and running executor counts.
func (c *Collector) SetExecutors(requested, running int) {
	if c == nil {
		return
	}
	c.executorsRequested.Set(float64(requested))
	c.executorsRunning.Set(float64(running))
}

// AddRowsWritten records rows persisted in format.
func (c *Collector) AddRowsWritten(format string, rows int64) {
	if c == nil {
		return
	}
	c.rowsWritten.WithLabelValues(format).Add(float64(rows))
}

// WriteTo encodes all metrics in the Prometheus text format.
func (c *Collector) WriteTo(w io.Writer) (int64, error) {
	if c == nil {
		return 0, nil
	}
	metricFamilies, err := c.registry.Gather()
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range metricFamilies {
		if err := enc.Encode(family); err != nil {
			return 0, err
		}
	}
	return buf.WriteTo(w)
}

// Write writes all metrics to a Prometheus text file.
func (c *Collector) Write(path string) error {
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
