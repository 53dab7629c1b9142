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

package kubernetes

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/master"
)

const (
	DefaultMinRegisteredRatio  = 0.8
	DefaultMaxRegistrationWait = 30 * time.Second
	DefaultBatchDelay          = time.Second
	DefaultConnectionTimeout   = 10 * time.Second
)

// ErrNamespaceNotFound is returned when the target namespace does not exist.
var ErrNamespaceNotFound = errors.New("namespace not found")

// Backend runs executors as pods while the driver stays in this process.
type Backend struct {
	params   cluster.Params
	client   client.Client
	settings *settings

	mu      sync.Mutex
	started bool
	stopped bool
}

var _ cluster.Backend = &Backend{}

func init() {
	cluster.RegisterBackend(master.KindKubernetes, NewBackend)
}

// NewBackend is the cluster.Factory for k8s:// masters.
func NewBackend(_ context.Context, params cluster.Params) (cluster.Backend, error) {
	cfg, err := RestConfig(params.Master.APIServer, params.Conf)
	if err != nil {
		return nil, err
	}
	kubeClient, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewBackendWithClient(params, kubeClient)
}

// NewBackendWithClient builds a backend on an existing client.
func NewBackendWithClient(params cluster.Params, kubeClient client.Client) (*Backend, error) {
	s, err := loadSettings(params)
	if err != nil {
		return nil, errors.Wrap(err, "invalid kubernetes executor configuration")
	}
	return &Backend{params: params, client: kubeClient, settings: s}, nil
}

func (b *Backend) Name() string { return "kubernetes" }

// Namespace returns the namespace executors run in.
func (b *Backend) Namespace() string { return b.settings.namespace }

// PodNamePrefix returns the prefix of every executor pod name.
func (b *Backend) PodNamePrefix() string { return b.settings.prefix }

// Start creates the executor pods and waits for enough of them to run.
func (b *Backend) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("kubernetes").WithValues("appId", b.params.AppID, "namespace", b.settings.namespace)
	ctx = log.IntoContext(ctx, logger)

	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	if err := b.settings.validate(); err != nil {
		return err
	}
	if err := b.probeNamespace(ctx); err != nil {
		return err
	}
	owner, err := b.driverOwner(ctx)
	if err != nil {
		return err
	}

	for id := 1; id <= b.settings.instances; id++ {
		pod, err := b.settings.executorPod(b.params, id, owner)
		if err != nil {
			return err
		}
		if err := b.client.Create(ctx, pod); err != nil {
			return errors.Wrapf(err, "failed to create executor pod %s", pod.Name)
		}
		logger.Info("Requested executor pod", "pod", pod.Name, "executorId", id)
	}
	b.params.Metrics.SetExecutors(b.settings.instances, 0)

	return b.waitForRegistration(ctx)
}

// probeNamespace checks the namespace exists, retrying transient failures
// until spark.kubernetes.submission.connectionTimeout.
func (b *Backend) probeNamespace(ctx context.Context) error {
	logger := log.FromContext(ctx)
	timeout, err := b.params.Conf.GetDuration(conf.KubernetesSubmissionConnTimeout, DefaultConnectionTimeout, time.Millisecond)
	if err != nil {
		return err
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 100 * time.Millisecond
	boff.MaxInterval = 2 * time.Second
	boff.MaxElapsedTime = timeout

	probe := func() error {
		ns := &corev1.Namespace{}
		err := b.client.Get(ctx, client.ObjectKey{Name: b.settings.namespace}, ns)
		switch {
		case err == nil:
			return nil
		case apierrors.IsNotFound(err):
			return backoff.Permanent(errors.Wrapf(ErrNamespaceNotFound, "%s", b.settings.namespace))
		case apierrors.IsForbidden(err):
			logger.Info("Not allowed to read namespace, continuing", "error", err.Error())
			return nil
		}
		return errors.Wrap(err, "failed to reach kubernetes API server")
	}
	notify := func(err error, next time.Duration) {
		logger.V(1).Info("Retrying namespace probe", "error", err.Error(), "after", next)
	}
	return backoff.RetryNotify(probe, backoff.WithContext(boff, ctx), notify)
}

// driverOwner returns an owner reference to the driver pod, if this process
// runs in one.
func (b *Backend) driverOwner(ctx context.Context) (*metav1.OwnerReference, error) {
	name := b.settings.driverPodName
	if name == "" {
		return nil, nil
	}
	pod := &corev1.Pod{}
	transient := func(err error) bool {
		return apierrors.IsServerTimeout(err) || apierrors.IsTimeout(err) || apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err)
	}
	err := retry.OnError(retry.DefaultBackoff, transient, func() error {
		return b.client.Get(ctx, client.ObjectKey{Name: name, Namespace: b.settings.namespace}, pod)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get driver pod %s", name)
	}
	return &metav1.OwnerReference{
		APIVersion: "v1",
		Kind:       "Pod",
		Name:       pod.Name,
		UID:        pod.UID,
		Controller: ptr.To(true),
	}, nil
}

// waitForRegistration polls executor pods until the running fraction reaches
// spark.scheduler.minRegisteredResourcesRatio. When
// spark.scheduler.maxRegisteredResourcesWaitingTime passes first the session
// goes ahead with whatever is running.
func (b *Backend) waitForRegistration(ctx context.Context) error {
	logger := log.FromContext(ctx)
	if b.settings.instances == 0 {
		return nil
	}
	c := b.params.Conf
	ratio, err := c.GetFloat(conf.MinRegisteredResourcesRatio, DefaultMinRegisteredRatio)
	if err != nil {
		return err
	}
	maxWait, err := c.GetDuration(conf.MaxRegisteredResourcesWaitingTime, DefaultMaxRegistrationWait, time.Millisecond)
	if err != nil {
		return err
	}
	interval, err := c.GetDuration(conf.KubernetesAllocationBatchDelay, DefaultBatchDelay, time.Millisecond)
	if err != nil {
		return err
	}
	required := ratio * float64(b.settings.instances)

	running, failed := 0, 0
	err = wait.PollUntilContextTimeout(ctx, interval, maxWait, true, func(ctx context.Context) (bool, error) {
		execs, err := b.Executors(ctx)
		if err != nil {
			logger.Error(err, "Failed to list executor pods")
			return false, nil
		}
		nowRunning, nowFailed := countPhases(execs)
		if nowFailed > failed {
			logger.Info("Executor pods failed", "failed", nowFailed)
		}
		running, failed = nowRunning, nowFailed
		b.params.Metrics.SetExecutors(b.settings.instances, running)
		return float64(running) >= required, nil
	})
	switch {
	case err == nil:
		logger.Info("Executors registered", "running", running, "requested", b.settings.instances)
		return nil
	case wait.Interrupted(err) && ctx.Err() == nil:
		logger.Info("Timed out waiting for executors, continuing", "running", running, "failed", failed,
			"requested", b.settings.instances, "minRegisteredRatio", ratio, "waited", maxWait)
		return nil
	}
	return errors.Wrap(err, "interrupted while waiting for executors")
}

func countPhases(execs []cluster.ExecutorInfo) (running, failed int) {
	for _, e := range execs {
		switch corev1.PodPhase(e.Phase) {
		case corev1.PodRunning:
			running++
		case corev1.PodFailed:
			failed++
		}
	}
	return running, failed
}

// Stop deletes every executor pod of the application unless
// spark.kubernetes.executor.deleteOnTermination is false.
func (b *Backend) Stop(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("kubernetes").WithValues("appId", b.params.AppID)

	b.mu.Lock()
	if b.stopped || !b.started {
		b.stopped = true
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	if !b.settings.deleteOnStop {
		logger.Info("Keeping executor pods", "namespace", b.settings.namespace)
		return nil
	}
	if err := DeleteExecutorPods(ctx, b.client, b.settings.namespace, b.params.AppID); err != nil {
		return err
	}
	b.params.Metrics.SetExecutors(0, 0)
	logger.Info("Deleted executor pods", "namespace", b.settings.namespace)
	return nil
}

// DefaultParallelism is spark.default.parallelism, or total executor cores
// with a floor of 2.
func (b *Backend) DefaultParallelism() int {
	total := b.TotalCores()
	if total < 2 {
		total = 2
	}
	return cluster.DefaultParallelism(b.params.Conf, total)
}

func (b *Backend) TotalCores() int {
	return b.settings.instances * b.settings.cores
}

func (b *Backend) ExecutorIDs() []string {
	if b.settings.instances == 0 {
		return []string{cluster.DriverExecutorID}
	}
	ids := make([]string, 0, b.settings.instances)
	for id := 1; id <= b.settings.instances; id++ {
		ids = append(ids, strconv.Itoa(id))
	}
	return ids
}

// Executors lists the executor pods of the application ordered by id.
func (b *Backend) Executors(ctx context.Context) ([]cluster.ExecutorInfo, error) {
	pods := &corev1.PodList{}
	err := b.client.List(ctx, pods,
		client.InNamespace(b.settings.namespace),
		client.MatchingLabels(b.settings.selectorLabels(b.params.AppID)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list executor pods")
	}

	execs := make([]cluster.ExecutorInfo, 0, len(pods.Items))
	for _, pod := range pods.Items {
		execs = append(execs, cluster.ExecutorInfo{
			ID:      pod.Labels[SparkExecIDLabel],
			PodName: pod.Name,
			Host:    pod.Status.PodIP,
			Phase:   string(pod.Status.Phase),
			Cores:   b.settings.cores,
		})
	}
	sort.Slice(execs, func(i, j int) bool {
		a, _ := strconv.Atoi(execs[i].ID)
		c, _ := strconv.Atoi(execs[j].ID)
		return a < c
	})
	return execs, nil
}
