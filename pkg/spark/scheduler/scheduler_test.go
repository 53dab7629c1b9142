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

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testContext(t *testing.T) context.Context {
	return log.IntoContext(context.Background(), testr.New(t))
}

func TestRunJobRunsEveryPartition(t *testing.T) {
	s := NewWithSlots(3, []string{"1", "2"}, metrics.NewCollector())

	var mu sync.Mutex
	seen := map[int]bool{}
	err := s.RunJob(testContext(t), "collect", 10, func(ctx context.Context, partition int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[partition] = true
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 10)
	for p := 0; p < 10; p++ {
		assert.True(t, seen[p], "partition %d", p)
	}
}

func TestRunJobHonorsSlots(t *testing.T) {
	s := NewWithSlots(2, nil, nil)

	var running, peak atomic.Int32
	err := s.RunJob(testContext(t), "bounded", 8, func(ctx context.Context, partition int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 2, s.Slots())
}

func TestRunJobFirstErrorCancelsOthers(t *testing.T) {
	s := NewWithSlots(4, []string{"1", "2"}, metrics.NewCollector())
	boom := errors.New("boom")

	err := s.RunJob(testContext(t), "failing", 4, func(ctx context.Context, partition int) error {
		if partition == 3 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Contains(t, err.Error(), "partition 3 on executor 2")
}

func TestRunJobRecoversPanics(t *testing.T) {
	s := NewWithSlots(1, nil, nil)
	err := s.RunJob(testContext(t), "panicky", 2, func(ctx context.Context, partition int) error {
		if partition == 1 {
			panic("bad row")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad row")
}

func TestRunJobZeroPartitions(t *testing.T) {
	s := NewWithSlots(1, nil, nil)
	called := false
	require.NoError(t, s.RunJob(testContext(t), "empty", 0, func(context.Context, int) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestRunJobCanceledContext(t *testing.T) {
	s := NewWithSlots(1, nil, nil)
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	err := s.RunJob(ctx, "canceled", 3, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoppedScheduler(t *testing.T) {
	s := NewWithSlots(1, nil, nil)
	s.Stop()
	err := s.RunJob(testContext(t), "late", 1, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestNewFromBackend(t *testing.T) {
	u, err := master.Parse("local[3]")
	require.NoError(t, err)
	b, err := cluster.NewLocalBackend(context.Background(), cluster.Params{Master: u, Conf: conf.New()})
	require.NoError(t, err)

	s := New(b, nil)
	assert.Equal(t, 3, s.Slots())
	assert.Equal(t, []string{cluster.DriverExecutorID}, s.executors)
}
