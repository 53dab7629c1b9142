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
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/scheduler"

	// registers the k8s:// backend
	_ "github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster/kubernetes"
)

// createMu serializes GetOrCreate so two callers never start two sessions.
var createMu sync.Mutex

// Builder collects options for GetOrCreate. Options are applied in the
// order they were given.
type Builder struct {
	options        []conf.KeyValue
	logger         *logr.Logger
	metrics        *metrics.Collector
	factory        cluster.Factory
	propertiesFile string
	skipDefaults   bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AppName sets spark.app.name.
func (b *Builder) AppName(name string) *Builder {
	return b.Config(conf.AppName, name)
}

// Master sets spark.master, e.g. "local[*]" or "k8s://https://host:6443".
func (b *Builder) Master(masterURL string) *Builder {
	return b.Config(conf.Master, masterURL)
}

// Config sets a single option.
func (b *Builder) Config(key, value string) *Builder {
	b.options = append(b.options, conf.KeyValue{Key: key, Value: value})
	return b
}

// ConfigMap sets every option in values, in key order.
func (b *Builder) ConfigMap(values map[string]string) *Builder {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Config(k, values[k])
	}
	return b
}

// WithConf copies every option already set on c.
func (b *Builder) WithConf(c conf.Reader) *Builder {
	b.options = append(b.options, c.All()...)
	return b
}

// WithLogger sets the session logger. The logger in the context passed to
// GetOrCreate is used otherwise.
func (b *Builder) WithLogger(logger logr.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithMetrics records session, job and executor metrics on m.
func (b *Builder) WithMetrics(m *metrics.Collector) *Builder {
	b.metrics = m
	return b
}

// WithBackend overrides the registered backend factory for this session.
func (b *Builder) WithBackend(factory cluster.Factory) *Builder {
	b.factory = factory
	return b
}

// WithPropertiesFile reads defaults from path instead of spark-defaults.conf.
func (b *Builder) WithPropertiesFile(path string) *Builder {
	b.propertiesFile = path
	return b
}

// WithoutDefaults skips loading spark-defaults.conf.
func (b *Builder) WithoutDefaults() *Builder {
	b.skipDefaults = true
	return b
}

// GetOrCreate returns the active session when there is one, applying the
// builder's runtime options to it. Otherwise it starts a new session and
// makes it active.
func (b *Builder) GetOrCreate(ctx context.Context) (*Session, error) {
	logger := b.loggerFor(ctx).WithName("session")

	createMu.Lock()
	defer createMu.Unlock()

	if s := Active(); s != nil {
		b.applyToExisting(logger, s)
		return s, nil
	}

	s, err := b.create(log.IntoContext(ctx, logger))
	if err != nil {
		return nil, err
	}
	setActive(s)
	return s, nil
}

func (b *Builder) loggerFor(ctx context.Context) logr.Logger {
	if b.logger != nil {
		return *b.logger
	}
	return log.FromContext(ctx)
}

func (b *Builder) applyToExisting(logger logr.Logger, s *Session) {
	ignored := false
	for _, kv := range b.options {
		if conf.IsStatic(kv.Key) {
			if current, _ := s.conf.Get(kv.Key); current != kv.Value {
				ignored = true
				logger.Info("Ignoring static config for the existing session", "key", kv.Key)
			}
			continue
		}
		if err := s.runtime.Set(kv.Key, kv.Value); err != nil {
			logger.Error(err, "Failed to apply config to the existing session", "key", kv.Key)
		}
	}
	if ignored {
		logger.Info("Using an existing session; some static configuration may not take effect", "appId", s.appID)
	}
}

func (b *Builder) create(ctx context.Context) (*Session, error) {
	logger := log.FromContext(ctx)

	c := conf.New()
	if err := b.loadDefaults(logger, c); err != nil {
		return nil, err
	}
	for _, kv := range b.options {
		if err := c.Set(kv.Key, kv.Value); err != nil {
			return nil, errors.Wrapf(err, "invalid option %q", kv.Key)
		}
	}
	if name := c.GetOrDefault(conf.AppName, ""); name == "" {
		if err := c.Set(conf.AppName, uuid.NewString()); err != nil {
			return nil, err
		}
	}

	rawMaster, ok := c.Get(conf.Master)
	if !ok {
		return nil, master.ErrMissingMaster
	}
	masterURL, err := master.Parse(rawMaster)
	if err != nil {
		return nil, err
	}

	appID := newAppID(masterURL)
	if err := c.Set(conf.AppID, appID); err != nil {
		return nil, err
	}
	c = c.Freeze()
	appName, _ := c.Get(conf.AppName)

	logger = logger.WithValues("appId", appID, "appName", appName)
	ctx = log.IntoContext(ctx, logger)
	logger.Info("Starting session", append([]interface{}{"master", masterURL.String()}, c.LogValues()...)...)

	params := cluster.Params{AppID: appID, AppName: appName, Master: masterURL, Conf: c, Metrics: b.metrics}
	var backend cluster.Backend
	if b.factory != nil {
		backend, err = b.factory(ctx, params)
	} else {
		backend, err = cluster.NewBackend(ctx, params)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cluster backend")
	}
	if err := backend.Start(ctx); err != nil {
		// executor pods must go even when ctx was cancelled mid-start
		stopErr := backend.Stop(context.WithoutCancel(ctx))
		err = multierr.Append(errors.Wrapf(err, "failed to start %s backend", backend.Name()), stopErr)
		return nil, err
	}

	b.metrics.ObserveSession(string(masterURL.Kind))
	s := &Session{
		appID:     appID,
		appName:   appName,
		master:    masterURL,
		conf:      c,
		runtime:   newRuntimeConfig(c),
		startTime: time.Now(),
		backend:   backend,
		scheduler: scheduler.New(backend, b.metrics),
		metrics:   b.metrics,
		logger:    logger,
	}
	logger.Info("Session started", "backend", backend.Name(), "cores", backend.TotalCores(),
		"defaultParallelism", s.defaultParallelism())
	return s, nil
}

func (b *Builder) loadDefaults(logger logr.Logger, c *conf.Conf) error {
	path := b.propertiesFile
	if path == "" {
		if b.skipDefaults {
			return nil
		}
		path = conf.DefaultsPath()
	}
	if path == "" {
		return nil
	}
	entries, err := conf.LoadDefaults(path)
	if err != nil {
		return err
	}
	for _, kv := range entries {
		if err := c.Set(kv.Key, kv.Value); err != nil {
			return errors.Wrapf(err, "invalid property %q in %s", kv.Key, path)
		}
	}
	logger.V(1).Info("Loaded default properties", "path", path, "count", len(entries))
	return nil
}

func newAppID(masterURL master.URL) string {
	if masterURL.IsLocal() {
		return "local-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return "spark-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
