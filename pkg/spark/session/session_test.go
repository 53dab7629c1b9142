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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster/kubernetes"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
)

func stopActive(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if s := Active(); s != nil {
			_ = s.Stop(context.Background())
		}
	})
}

func localBuilder(t *testing.T) *Builder {
	return NewBuilder().WithLogger(testr.New(t)).WithoutDefaults().Master("local[2]")
}

func TestGetOrCreateLocal(t *testing.T) {
	stopActive(t)
	ctx := context.Background()

	s, err := localBuilder(t).AppName("EnterpriseLocal").GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Same(t, s, Active())
	assert.Equal(t, "EnterpriseLocal", s.AppName())
	assert.True(t, strings.HasPrefix(s.AppID(), "local-"), s.AppID())
	assert.Equal(t, master.KindLocal, s.Master().Kind)
	assert.False(t, s.StartTime().IsZero())

	id, ok := s.Conf().Get(conf.AppID)
	assert.True(t, ok)
	assert.Equal(t, s.AppID(), id)

	held, ok := s.Conf().(*conf.Conf)
	require.True(t, ok)
	assert.True(t, held.Frozen())
	assert.ErrorIs(t, held.Set(conf.Master, "k8s://https://10.0.0.1:6443"), conf.ErrFrozen)
	assert.ErrorIs(t, held.Remove(conf.AppName), conf.ErrFrozen)
	assert.Equal(t, "local[2]", s.Conf().GetOrDefault(conf.Master, ""))

	df, err := s.Range(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2, df.NumPartitions())
	named, err := df.ToDF("number")
	require.NoError(t, err)
	rows, err := named.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1000)
	for i, r := range rows {
		v, err := r.GetLong(0)
		require.NoError(t, err)
		require.Equal(t, int64(i), v)
	}

	execs, err := s.Executors(ctx)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, cluster.DriverExecutorID, execs[0].ID)

	require.NoError(t, s.Stop(ctx))
	assert.True(t, s.Stopped())
	assert.Nil(t, Active())
	assert.NoError(t, s.Stop(ctx))

	_, err = s.Range(0, 10)
	assert.ErrorIs(t, err, ErrSessionStopped)
	_, err = named.Count(ctx)
	assert.Error(t, err)
}

func TestRangeOptions(t *testing.T) {
	stopActive(t)
	s, err := localBuilder(t).Config(conf.DefaultParallelism, "5").GetOrCreate(context.Background())
	require.NoError(t, err)

	df, err := s.Range(0, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, df.NumPartitions())

	df, err = s.Range(10, 0, WithStep(-2), WithNumPartitions(3))
	require.NoError(t, err)
	assert.Equal(t, 3, df.NumPartitions())
	count, err := df.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	_, err = s.Range(0, 10, WithStep(0))
	assert.Error(t, err)
}

func TestGetOrCreateReusesActiveSession(t *testing.T) {
	stopActive(t)
	ctx := context.Background()

	first, err := localBuilder(t).AppName("first").GetOrCreate(ctx)
	require.NoError(t, err)

	second, err := localBuilder(t).
		AppName("second").
		Master("local[4]").
		Config("spark.sql.shuffle.partitions", "4").
		GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "first", second.AppName())
	assert.Equal(t, "local[2]", second.Conf().GetOrDefault(conf.Master, ""))
	assert.Equal(t, "4", second.RuntimeConf().GetOrDefault("spark.sql.shuffle.partitions", ""))

	require.NoError(t, first.Stop(ctx))
	third, err := localBuilder(t).AppName("third").GetOrCreate(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "third", third.AppName())
}

func TestGeneratedAppName(t *testing.T) {
	stopActive(t)
	s, err := localBuilder(t).GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.AppName(), 36)
}

func TestMissingMaster(t *testing.T) {
	stopActive(t)
	_, err := NewBuilder().WithLogger(testr.New(t)).WithoutDefaults().AppName("x").GetOrCreate(context.Background())
	assert.ErrorIs(t, err, master.ErrMissingMaster)
	assert.Nil(t, Active())
}

func TestPropertiesFile(t *testing.T) {
	stopActive(t)
	path := filepath.Join(t.TempDir(), "spark-defaults.conf")
	require.NoError(t, os.WriteFile(path, []byte("# defaults\nspark.master local[3]\nspark.app.name fromfile\nspark.executor.cores=2\n"), 0o644))

	s, err := NewBuilder().WithLogger(testr.New(t)).WithPropertiesFile(path).AppName("override").GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "override", s.AppName())
	assert.Equal(t, 3, s.Master().Threads)
	assert.Equal(t, "2", s.Conf().GetOrDefault(conf.ExecutorCores, ""))
}

func TestRuntimeConf(t *testing.T) {
	stopActive(t)
	s, err := localBuilder(t).Config("spark.sql.session.timeZone", "UTC").Config("spark.hadoop.fs.s3a.secret.key", "abc").GetOrCreate(context.Background())
	require.NoError(t, err)
	rc := s.RuntimeConf()

	assert.ErrorIs(t, rc.Set(conf.Master, "local[1]"), ErrStaticConfig)
	assert.ErrorIs(t, rc.Set(conf.KubernetesNamespace, "other"), ErrStaticConfig)
	assert.False(t, rc.IsModifiable(conf.ExecutorInstances))
	assert.True(t, rc.IsModifiable("spark.sql.session.timeZone"))

	require.NoError(t, rc.Set("spark.sql.session.timeZone", "Europe/Lisbon"))
	assert.Equal(t, "Europe/Lisbon", rc.GetOrDefault("spark.sql.session.timeZone", ""))
	assert.Equal(t, "UTC", s.Conf().GetOrDefault("spark.sql.session.timeZone", ""))

	all := map[string]string{}
	for _, kv := range rc.All() {
		all[kv.Key] = kv.Value
	}
	assert.Equal(t, "Europe/Lisbon", all["spark.sql.session.timeZone"])
	assert.Equal(t, conf.RedactedValue, all["spark.hadoop.fs.s3a.secret.key"])

	require.NoError(t, rc.Unset("spark.sql.session.timeZone"))
	assert.Equal(t, "UTC", rc.GetOrDefault("spark.sql.session.timeZone", ""))
}

type failingBackend struct {
	cluster.Backend
	stopped bool
}

func (b *failingBackend) Name() string { return "failing" }

func (b *failingBackend) Start(_ context.Context) error {
	return errors.New("quota exceeded")
}

func (b *failingBackend) Stop(_ context.Context) error {
	b.stopped = true
	return nil
}

func TestStartFailureStopsBackend(t *testing.T) {
	stopActive(t)
	backend := &failingBackend{}
	_, err := localBuilder(t).WithBackend(func(context.Context, cluster.Params) (cluster.Backend, error) {
		return backend, nil
	}).GetOrCreate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.True(t, backend.stopped)
	assert.Nil(t, Active())
}

func TestKubernetesSession(t *testing.T) {
	stopActive(t)
	ctx := context.Background()

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "spark"}}
	k8sClient := fake.NewClientBuilder().WithScheme(kubernetes.NewScheme()).WithObjects(ns).Build()
	collector := metrics.NewCollector()

	s, err := NewBuilder().
		WithLogger(testr.New(t)).
		WithoutDefaults().
		WithMetrics(collector).
		WithBackend(func(_ context.Context, params cluster.Params) (cluster.Backend, error) {
			return kubernetes.NewBackendWithClient(params, k8sClient)
		}).
		AppName("EnterpriseLocal").
		Master("k8s://https://192.168.65.3:6443").
		Config(conf.KubernetesNamespace, "spark").
		Config(conf.KubernetesContainerImage, "apache/spark:3.5.1").
		Config(conf.DriverHost, "driver.spark.svc").
		Config(conf.MaxRegisteredResourcesWaitingTime, "100ms").
		Config(conf.KubernetesAllocationBatchDelay, "10ms").
		GetOrCreate(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.AppID(), "spark-"), s.AppID())
	assert.Len(t, strings.TrimPrefix(s.AppID(), "spark-"), 32)

	execs, err := s.Executors(ctx)
	require.NoError(t, err)
	ids := make([]string, len(execs))
	for i, e := range execs {
		ids[i] = e.ID
	}
	if diff := cmp.Diff([]string{"1", "2"}, ids); diff != "" {
		t.Errorf("executor ids mismatch (-want +got):\n%s", diff)
	}

	df, err := s.Range(0, 1000)
	require.NoError(t, err)
	count, err := df.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), count)

	require.NoError(t, s.Stop(ctx))
	pods := &corev1.PodList{}
	require.NoError(t, k8sClient.List(ctx, pods, client.InNamespace("spark")))
	assert.Empty(t, pods.Items)
}

func TestCancelledKubernetesStartDeletesPods(t *testing.T) {
	stopActive(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "spark"}}
	k8sClient := fake.NewClientBuilder().
		WithScheme(kubernetes.NewScheme()).
		WithObjects(ns).
		WithInterceptorFuncs(interceptor.Funcs{
			// the interrupt arrives while executors are being requested
			Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
				err := c.Create(ctx, obj, opts...)
				cancel()
				return err
			},
			DeleteAllOf: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.DeleteAllOfOption) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return c.DeleteAllOf(ctx, obj, opts...)
			},
		}).
		Build()

	_, err := NewBuilder().
		WithLogger(testr.New(t)).
		WithoutDefaults().
		WithBackend(func(_ context.Context, params cluster.Params) (cluster.Backend, error) {
			return kubernetes.NewBackendWithClient(params, k8sClient)
		}).
		AppName("EnterpriseLocal").
		Master("k8s://https://192.168.65.3:6443").
		Config(conf.KubernetesNamespace, "spark").
		Config(conf.KubernetesContainerImage, "apache/spark:3.5.1").
		Config(conf.MaxRegisteredResourcesWaitingTime, "5s").
		Config(conf.KubernetesAllocationBatchDelay, "10ms").
		GetOrCreate(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, Active())

	pods := &corev1.PodList{}
	require.NoError(t, k8sClient.List(context.Background(), pods, client.InNamespace("spark")))
	assert.Empty(t, pods.Items)
}
