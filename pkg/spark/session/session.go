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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/scheduler"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/sql"
)

// ErrSessionStopped is returned by operations on a stopped session.
var ErrSessionStopped = errors.New("session has been stopped")

// Session is a connection to a cluster. It owns the executors requested by
// its backend until Stop is called.
type Session struct {
	appID     string
	appName   string
	master    master.URL
	conf      *conf.Conf
	runtime   *RuntimeConfig
	startTime time.Time
	backend   cluster.Backend
	scheduler *scheduler.Scheduler
	metrics   *metrics.Collector
	logger    logr.Logger

	mu      sync.Mutex
	stopped bool
}

// AppID is the application id, "local-<millis>" or "spark-<hex>".
func (s *Session) AppID() string { return s.appID }

// AppName is spark.app.name.
func (s *Session) AppName() string { return s.appName }

// Master is the parsed spark.master.
func (s *Session) Master() master.URL { return s.master }

// Conf returns the options the session was started with.
func (s *Session) Conf() conf.Reader { return s.conf }

// RuntimeConf returns the options that can still change.
func (s *Session) RuntimeConf() *RuntimeConfig { return s.runtime }

// StartTime is when the backend finished starting.
func (s *Session) StartTime() time.Time { return s.startTime }

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type rangeOptions struct {
	step       int64
	partitions int
}

// RangeOption customizes Range.
type RangeOption func(*rangeOptions)

// WithStep sets the increment between values. It must not be 0.
func WithStep(step int64) RangeOption {
	return func(o *rangeOptions) { o.step = step }
}

// WithNumPartitions sets the number of partitions.
func WithNumPartitions(n int) RangeOption {
	return func(o *rangeOptions) { o.partitions = n }
}

// Range returns a DataFrame with a single long column "id" holding the
// values in [start, end). Nothing is computed until an action runs.
func (s *Session) Range(start, end int64, opts ...RangeOption) (*sql.DataFrame, error) {
	if s.Stopped() {
		return nil, ErrSessionStopped
	}
	o := rangeOptions{step: 1, partitions: s.defaultParallelism()}
	for _, opt := range opts {
		opt(&o)
	}
	return sql.Range(sql.Env{Runner: s.scheduler, Metrics: s.metrics}, start, end, o.step, o.partitions)
}

func (s *Session) defaultParallelism() int {
	return cluster.DefaultParallelism(s.conf, s.backend.DefaultParallelism())
}

// Executors lists the executors of the backend.
func (s *Session) Executors(ctx context.Context) ([]cluster.ExecutorInfo, error) {
	if s.Stopped() {
		return nil, ErrSessionStopped
	}
	return s.backend.Executors(ctx)
}

// Stop releases the executors and clears the active session. Calls after
// the first return nil.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	logger := s.logger
	ctx = log.IntoContext(ctx, logger)
	logger.Info("Stopping session")

	var err error
	s.scheduler.Stop()
	if stopErr := s.backend.Stop(ctx); stopErr != nil {
		err = multierr.Append(err, errors.Wrapf(stopErr, "failed to stop %s backend", s.backend.Name()))
	}
	clearActive(s)
	if err != nil {
		logger.Error(err, "Session stopped with errors")
		return err
	}
	logger.Info("Session stopped", "uptime", time.Since(s.startTime).Round(time.Millisecond).String())
	return nil
}
