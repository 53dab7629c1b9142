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
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/utils/ptr"

	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/cluster"
	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
)

const (
	DefaultNamespace         = "default"
	DefaultExecutorInstances = 2
	DefaultExecutorCores     = 1
	DefaultExecutorMemoryMiB = 1024
	DefaultDriverPort        = 7078
	DefaultOverheadFactor    = 0.1
	MinMemoryOverheadMiB     = 384

	sparkConfDir = "/opt/spark/conf"
)

var (
	// ErrMissingImage is returned when no executor image is configured.
	ErrMissingImage = errors.New("must specify the executor container image via " + conf.KubernetesContainerImage)

	// ErrInvalidNamespace is returned when the namespace is not a DNS label.
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// settings is the executor pod template resolved from the session conf.
type settings struct {
	namespace      string
	image          string
	pullPolicy     corev1.PullPolicy
	instances      int
	cores          int
	requestCores   string
	limitCores     string
	memory         string
	memoryMiB      int64
	overheadMiB    int64
	driverHost     string
	driverPort     int
	serviceAccount string
	driverPodName  string
	prefix         string
	deleteOnStop   bool
	labels         map[string]string
	annotations    map[string]string
	nodeSelector   map[string]string
}

func loadSettings(params cluster.Params) (*settings, error) {
	c := params.Conf
	s := &settings{
		namespace:      c.GetOrDefault(conf.KubernetesNamespace, DefaultNamespace),
		image:          c.GetOrDefault(conf.KubernetesExecutorContainerImage, c.GetOrDefault(conf.KubernetesContainerImage, "")),
		pullPolicy:     corev1.PullPolicy(c.GetOrDefault(conf.KubernetesContainerImagePullPolicy, string(corev1.PullIfNotPresent))),
		memory:         c.GetOrDefault(conf.ExecutorMemory, "1g"),
		requestCores:   c.GetOrDefault(conf.KubernetesExecutorRequestCores, ""),
		limitCores:     c.GetOrDefault(conf.KubernetesExecutorLimitCores, ""),
		serviceAccount: c.GetOrDefault(conf.KubernetesExecutorServiceAccount, ""),
		driverPodName:  c.GetOrDefault(conf.KubernetesDriverPodName, ""),
		labels:         c.WithPrefix(conf.KubernetesExecutorLabelPrefix),
		annotations:    c.WithPrefix(conf.KubernetesExecutorAnnotationPrefix),
		nodeSelector:   c.WithPrefix(conf.KubernetesNodeSelectorPrefix),
	}

	var err error
	if s.instances, err = c.GetInt(conf.ExecutorInstances, DefaultExecutorInstances); err != nil {
		return nil, err
	}
	if s.instances < 0 {
		return nil, errors.Errorf("%s must not be negative, got %d", conf.ExecutorInstances, s.instances)
	}
	if s.cores, err = c.GetInt(conf.ExecutorCores, DefaultExecutorCores); err != nil {
		return nil, err
	}
	if s.cores < 1 {
		return nil, errors.Errorf("%s must be positive, got %d", conf.ExecutorCores, s.cores)
	}
	if s.memoryMiB, err = c.GetSizeAsMiB(conf.ExecutorMemory, DefaultExecutorMemoryMiB); err != nil {
		return nil, err
	}
	if s.overheadMiB, err = memoryOverhead(c, s.memoryMiB); err != nil {
		return nil, err
	}
	if s.driverPort, err = c.GetInt(conf.DriverPort, DefaultDriverPort); err != nil {
		return nil, err
	}
	if s.deleteOnStop, err = c.GetBool(conf.KubernetesExecutorDeleteOnTermination, true); err != nil {
		return nil, err
	}

	s.driverHost = c.GetOrDefault(conf.DriverHost, "")
	if s.driverHost == "" {
		if s.driverHost, err = os.Hostname(); err != nil || s.driverHost == "" {
			s.driverHost = "localhost"
		}
	}

	if prefix, ok := c.Get(conf.KubernetesExecutorPodNamePrefix); ok {
		if err := validatePrefix(prefix); err != nil {
			return nil, err
		}
		s.prefix = prefix
	} else if s.prefix, err = resourceNamePrefix(params.AppName); err != nil {
		return nil, err
	}
	return s, nil
}

// memoryOverhead returns spark.executor.memoryOverhead, or
// max(factor * memory, 384MiB).
func memoryOverhead(c conf.Reader, memoryMiB int64) (int64, error) {
	if c.Contains(conf.ExecutorMemoryOverhead) {
		return c.GetSizeAsMiB(conf.ExecutorMemoryOverhead, MinMemoryOverheadMiB)
	}
	factor, err := c.GetFloat(conf.ExecutorMemoryOverheadFactor, DefaultOverheadFactor)
	if err != nil {
		return 0, err
	}
	overhead := int64(factor * float64(memoryMiB))
	if overhead < MinMemoryOverheadMiB {
		overhead = MinMemoryOverheadMiB
	}
	return overhead, nil
}

// validate checks the options that must be present before pods are created.
func (s *settings) validate() error {
	if s.image == "" {
		return ErrMissingImage
	}
	if errs := validation.IsDNS1123Label(s.namespace); len(errs) > 0 {
		return errors.Wrapf(ErrInvalidNamespace, "%q: %v", s.namespace, errs)
	}
	return nil
}

func (s *settings) driverURL() string {
	return fmt.Sprintf("spark://CoarseGrainedScheduler@%s:%d", s.driverHost, s.driverPort)
}

func (s *settings) selectorLabels(appID string) map[string]string {
	return executorSelector(appID)
}

func executorSelector(appID string) map[string]string {
	return map[string]string{
		SparkAppSelectorLabel: appID,
		SparkRoleLabel:        ExecutorRole,
	}
}

// executorPod builds the pod for executor id.
func (s *settings) executorPod(params cluster.Params, id int, owner *metav1.OwnerReference) (*corev1.Pod, error) {
	podName := executorPodName(s.prefix, id)

	labels := map[string]string{}
	for k, v := range s.labels {
		labels[k] = v
	}
	labels[SparkAppSelectorLabel] = params.AppID
	labels[SparkRoleLabel] = ExecutorRole
	labels[SparkExecIDLabel] = strconv.Itoa(id)
	if name := appNameLabelValue(params.AppName); name != "" {
		labels[SparkAppNameLabel] = name
	}

	resources, err := s.resources()
	if err != nil {
		return nil, err
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:        podName,
			Namespace:   s.namespace,
			Labels:      labels,
			Annotations: s.annotations,
		},
		Spec: corev1.PodSpec{
			Hostname:           truncateHostname(podName),
			RestartPolicy:      corev1.RestartPolicyNever,
			ServiceAccountName: s.serviceAccount,
			NodeSelector:       s.nodeSelector,
			EnableServiceLinks: ptr.To(false),
			Containers: []corev1.Container{
				{
					Name:            ExecutorContainerName,
					Image:           s.image,
					ImagePullPolicy: s.pullPolicy,
					Args:            []string{"executor"},
					Resources:       resources,
					Env:             s.executorEnv(params.AppID, id),
				},
			},
		},
	}
	if owner != nil {
		pod.OwnerReferences = []metav1.OwnerReference{*owner}
	}
	return pod, nil
}

func (s *settings) resources() (corev1.ResourceRequirements, error) {
	memory := resource.MustParse(fmt.Sprintf("%dMi", s.memoryMiB+s.overheadMiB))

	cpuRequest := strconv.Itoa(s.cores)
	if s.requestCores != "" {
		cpuRequest = s.requestCores
	}
	cpu, err := resource.ParseQuantity(cpuRequest)
	if err != nil {
		return corev1.ResourceRequirements{}, errors.Wrapf(err, "invalid executor cpu request %q", cpuRequest)
	}

	res := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceCPU:    cpu,
			corev1.ResourceMemory: memory,
		},
		Limits: corev1.ResourceList{
			corev1.ResourceMemory: memory,
		},
	}
	if s.limitCores != "" {
		limit, err := resource.ParseQuantity(s.limitCores)
		if err != nil {
			return corev1.ResourceRequirements{}, errors.Wrapf(err, "invalid executor cpu limit %q", s.limitCores)
		}
		res.Limits[corev1.ResourceCPU] = limit
	}
	return res, nil
}

func (s *settings) executorEnv(appID string, id int) []corev1.EnvVar {
	return []corev1.EnvVar{
		{Name: "SPARK_USER", Value: sparkUser()},
		{Name: "SPARK_DRIVER_URL", Value: s.driverURL()},
		{Name: "SPARK_EXECUTOR_CORES", Value: strconv.Itoa(s.cores)},
		{Name: "SPARK_EXECUTOR_MEMORY", Value: s.memory},
		{Name: "SPARK_APPLICATION_ID", Value: appID},
		{Name: "SPARK_CONF_DIR", Value: sparkConfDir},
		{Name: "SPARK_EXECUTOR_ID", Value: strconv.Itoa(id)},
		{Name: "SPARK_RESOURCE_PROFILE_ID", Value: "0"},
		{
			Name: "SPARK_EXECUTOR_POD_IP",
			ValueFrom: &corev1.EnvVarSource{
				FieldRef: &corev1.ObjectFieldSelector{APIVersion: "v1", FieldPath: "status.podIP"},
			},
		},
		{
			Name: "SPARK_EXECUTOR_POD_NAME",
			ValueFrom: &corev1.EnvVarSource{
				FieldRef: &corev1.ObjectFieldSelector{APIVersion: "v1", FieldPath: "metadata.name"},
			},
		},
	}
}

func sparkUser() string {
	if user := os.Getenv("SPARK_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "spark"
}

func truncateHostname(name string) string {
	if len(name) <= validation.DNS1123LabelMaxLength {
		return name
	}
	return sanitizeName(name[len(name)-validation.DNS1123LabelMaxLength:])
}
