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

package cluster

import (
	"context"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DriverExecutorID is the id of the in-process executor.
const DriverExecutorID = "driver"

// LocalBackend runs every task inside the driver process.
type LocalBackend struct {
	params  Params
	threads int

	mu      sync.Mutex
	started bool
}

// NewLocalBackend returns the backend for local masters.
func NewLocalBackend(_ context.Context, params Params) (Backend, error) {
	threads := params.Master.Threads
	if threads < 1 {
		threads = 1
	}
	return &LocalBackend{params: params, threads: threads}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("local")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	logger.Info("Started local executor", "appId", b.params.AppID, "threads", b.threads)
	return nil
}

func (b *LocalBackend) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.started = false
	log.FromContext(ctx).WithName("local").V(1).Info("Stopped local executor", "appId", b.params.AppID)
	return nil
}

func (b *LocalBackend) DefaultParallelism() int {
	return DefaultParallelism(b.params.Conf, b.threads)
}

func (b *LocalBackend) TotalCores() int { return b.threads }

func (b *LocalBackend) ExecutorIDs() []string { return []string{DriverExecutorID} }

func (b *LocalBackend) Executors(_ context.Context) ([]ExecutorInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	phase := "Stopped"
	if b.started {
		phase = "Running"
	}
	return []ExecutorInfo{{ID: DriverExecutorID, Host: "localhost", Phase: phase, Cores: b.threads}}, nil
}
