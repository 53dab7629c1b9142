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

// Package scheduler runs the tasks of a job, one per partition, bounded by the
// task slots of the cluster backend.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrStopped is returned for jobs submitted after Stop.
var ErrStopped = errors.New("scheduler is stopped")

// Task computes one partition.
type Task func(ctx context.Context, partition int) error

// Scheduler assigns tasks round-robin over executor ids.
type Scheduler struct {
	slots     int
	executors []string
	metrics   *metrics.Collector

	jobIDs  atomic.Int64
	mu      sync.RWMutex
	stopped bool
}

// New returns a scheduler sized to the backend's cores.
func New(backend cluster.Backend, m *metrics.Collector) *Scheduler {
	return NewWithSlots(backend.TotalCores(), backend.ExecutorIDs(), m)
}

// NewWithSlots returns a scheduler running at most slots tasks at once.
func NewWithSlots(slots int, executors []string, m *metrics.Collector) *Scheduler {
	if slots < 1 {
		slots = 1
	}
	if len(executors) == 0 {
		executors = []string{cluster.DriverExecutorID}
	}
	return &Scheduler{slots: slots, executors: executors, metrics: m}
}

// Slots is the concurrency limit.
func (s *Scheduler) Slots() int { return s.slots }

// Stop makes later RunJob calls fail with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// RunJob runs task for every partition in [0, partitions). The first failure
// cancels the tasks still running and is returned.
func (s *Scheduler) RunJob(ctx context.Context, description string, partitions int, task func(ctx context.Context, partition int) error) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	jobID := s.jobIDs.Add(1) - 1
	logger := log.FromContext(ctx).WithName("scheduler").WithValues("job", jobID)
	logger.V(1).Info("Starting job", "description", description, "partitions", partitions)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.slots)
	for p := 0; p < partitions; p++ {
		if gctx.Err() != nil {
			break
		}
		partition := p
		executor := s.executors[partition%len(s.executors)]
		g.Go(func() error {
			return s.runTask(gctx, logger, executor, partition, task)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveJob(StatusFailed, elapsed)
		logger.Info("Job failed", "description", description, "duration", elapsed, "error", err.Error())
		return errors.Wrapf(err, "job %d failed: %s", jobID, description)
	}
	s.metrics.ObserveJob(StatusSucceeded, elapsed)
	logger.V(1).Info("Job finished", "description", description, "duration", elapsed)
	return nil
}

func (s *Scheduler) runTask(ctx context.Context, logger logr.Logger, executor string, partition int, task Task) (err error) {
	taskLogger := logger.WithValues("partition", partition, "executor", executor)
	ctx = log.IntoContext(ctx, taskLogger)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
		status := StatusSucceeded
		if err != nil {
			status = StatusFailed
			err = errors.Wrapf(err, "task for partition %d on executor %s", partition, executor)
		}
		s.metrics.ObserveTask(executor, status, time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return task(ctx, partition)
}
