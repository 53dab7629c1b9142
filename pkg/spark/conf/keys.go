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

package conf

import "strings"

const (
	// application
	AppName            = "spark.app.name"
	AppID              = "spark.app.id"
	Master             = "spark.master"
	DefaultParallelism = "spark.default.parallelism"
	RedactionRegex     = "spark.redaction.regex"

	// driver
	DriverHost = "spark.driver.host"
	DriverPort = "spark.driver.port"

	// executor sizing
	ExecutorInstances            = "spark.executor.instances"
	ExecutorCores                = "spark.executor.cores"
	ExecutorMemory               = "spark.executor.memory"
	ExecutorMemoryOverhead       = "spark.executor.memoryOverhead"
	ExecutorMemoryOverheadFactor = "spark.executor.memoryOverheadFactor"

	// scheduler
	MinRegisteredResourcesRatio       = "spark.scheduler.minRegisteredResourcesRatio"
	MaxRegisteredResourcesWaitingTime = "spark.scheduler.maxRegisteredResourcesWaitingTime"

	// kubernetes
	KubernetesNamespace                   = "spark.kubernetes.namespace"
	KubernetesContext                     = "spark.kubernetes.context"
	KubernetesContainerImage              = "spark.kubernetes.container.image"
	KubernetesExecutorContainerImage      = "spark.kubernetes.executor.container.image"
	KubernetesContainerImagePullPolicy    = "spark.kubernetes.container.image.pullPolicy"
	KubernetesExecutorRequestCores        = "spark.kubernetes.executor.request.cores"
	KubernetesExecutorLimitCores          = "spark.kubernetes.executor.limit.cores"
	KubernetesExecutorPodNamePrefix       = "spark.kubernetes.executor.podNamePrefix"
	KubernetesExecutorDeleteOnTermination = "spark.kubernetes.executor.deleteOnTermination"
	KubernetesExecutorServiceAccount      = "spark.kubernetes.authenticate.executor.serviceAccountName"
	KubernetesDriverPodName               = "spark.kubernetes.driver.pod.name"
	KubernetesAllocationBatchDelay        = "spark.kubernetes.allocation.batch.delay"
	KubernetesSubmissionConnTimeout       = "spark.kubernetes.submission.connectionTimeout"
	KubernetesOAuthToken                  = "spark.kubernetes.authenticate.oauthToken"
	KubernetesCACertFile                  = "spark.kubernetes.authenticate.caCertFile"
	KubernetesClientCertFile              = "spark.kubernetes.authenticate.clientCertFile"
	KubernetesClientKeyFile               = "spark.kubernetes.authenticate.clientKeyFile"

	// prefixed maps
	KubernetesExecutorLabelPrefix      = "spark.kubernetes.executor.label."
	KubernetesExecutorAnnotationPrefix = "spark.kubernetes.executor.annotation."
	KubernetesNodeSelectorPrefix       = "spark.kubernetes.node.selector."
)

// DefaultRedactionRegex matches keys whose values must never be printed.
const DefaultRedactionRegex = `(?i)secret|password|token|access[.]?key`

// staticPrefixes lists key prefixes that can only be set before a session starts.
var staticPrefixes = []string{
	"spark.app.",
	"spark.master",
	"spark.driver.",
	"spark.executor.",
	"spark.kubernetes.",
	"spark.scheduler.",
	"spark.default.parallelism",
}

// IsStatic reports whether key is fixed once a session has been created.
func IsStatic(key string) bool {
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
