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
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
)

// ErrNoBackend is returned when no factory is registered for a master kind.
var ErrNoBackend = errors.New("no cluster backend registered for master")

// ExecutorInfo describes one executor known to a backend
type ExecutorInfo struct {
	ID      string
	PodName string
	Host    string
	Phase   string
	Cores   int
}

// Params carries everything a backend needs to start an application
type Params struct {
	AppID   string
	AppName string
	Master  master.URL
	Conf    conf.Reader
	Metrics *metrics.Collector
}

// Backend defines the interface every cluster manager integration implements
type Backend interface {
	// Name returns the backend name (e.g., "local", "kubernetes")
	Name() string

	// Start acquires executors for the application
	Start(ctx context.Context) error

	// Stop releases executors. Calling it twice is a no-op.
	Stop(ctx context.Context) error

	// DefaultParallelism is the partition count used when none is requested
	DefaultParallelism() int

	// TotalCores is the number of task slots across all executors
	TotalCores() int

	// ExecutorIDs returns the ids tasks are assigned to
	ExecutorIDs() []string

	// Executors returns the current executor view
	Executors(ctx context.Context) ([]ExecutorInfo, error)
}

// Factory builds a backend for a parsed master
type Factory func(ctx context.Context, params Params) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[master.Kind]Factory{}
)

// RegisterBackend installs the factory for kind and returns the one it replaced.
func RegisterBackend(kind master.Kind, factory Factory) Factory {
	registryMu.Lock()
	defer registryMu.Unlock()
	previous := registry[kind]
	if factory == nil {
		delete(registry, kind)
	} else {
		registry[kind] = factory
	}
	return previous
}

// RegisteredKinds lists the master kinds with a factory.
func RegisteredKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// NewBackend builds the backend registered for params.Master.Kind.
func NewBackend(ctx context.Context, params Params) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[params.Master.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNoBackend, "%s", params.Master.Raw)
	}
	return factory(ctx, params)
}

// DefaultParallelism returns spark.default.parallelism when set, else fallback.
func DefaultParallelism(c conf.Reader, fallback int) int {
	if n, err := c.GetInt(conf.DefaultParallelism, 0); err == nil && n > 0 {
		return n
	}
	return fallback
}

func init() {
	RegisterBackend(master.KindLocal, NewLocalBackend)
}
