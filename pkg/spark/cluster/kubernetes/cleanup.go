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

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Application summarizes the executor pods left by one application.
type Application struct {
	AppID   string
	AppName string
	Pods    int
	Running int
}

// ListApplications groups the executor pods in namespace by application id.
func ListApplications(ctx context.Context, c client.Client, namespace string) ([]Application, error) {
	pods := &corev1.PodList{}
	err := c.List(ctx, pods, client.InNamespace(namespace), client.MatchingLabels{SparkRoleLabel: ExecutorRole})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list executor pods in %s", namespace)
	}

	byID := map[string]*Application{}
	for _, pod := range pods.Items {
		id := pod.Labels[SparkAppSelectorLabel]
		if id == "" {
			continue
		}
		app, ok := byID[id]
		if !ok {
			app = &Application{AppID: id, AppName: pod.Labels[SparkAppNameLabel]}
			byID[id] = app
		}
		app.Pods++
		if pod.Status.Phase == corev1.PodRunning {
			app.Running++
		}
	}

	apps := make([]Application, 0, len(byID))
	for _, app := range byID {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].AppID < apps[j].AppID })
	return apps, nil
}

// DeleteExecutorPods deletes every executor pod of appID in namespace.
func DeleteExecutorPods(ctx context.Context, c client.Client, namespace, appID string) error {
	if appID == "" {
		return errors.New("application id is required")
	}
	err := c.DeleteAllOf(ctx, &corev1.Pod{},
		client.InNamespace(namespace),
		client.MatchingLabels(executorSelector(appID)),
	)
	if err = client.IgnoreNotFound(err); err != nil {
		return errors.Wrapf(err, "failed to delete executor pods of %s", appID)
	}
	return nil
}
