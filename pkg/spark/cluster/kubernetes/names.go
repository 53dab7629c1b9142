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
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-password/password"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	// Pod labels shared with spark-submit so tooling can find executors
	SparkAppSelectorLabel = "spark-app-selector"
	SparkRoleLabel        = "spark-role"
	SparkExecIDLabel      = "spark-exec-id"
	SparkAppNameLabel     = "spark-app-name"
	ExecutorRole          = "executor"

	ExecutorContainerName = "spark-kubernetes-executor"

	// executor pod names are <prefix>-exec-<id>
	executorPodNameTemplate = "%s-exec-%d"

	// longest prefix that still leaves room for "-exec-" plus a 10 digit id
	maxPrefixLength = validation.DNS1123LabelMaxLength - 16
	suffixLength    = 6
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// sanitizeName lowercases name and replaces runs of characters that are not
// allowed in a DNS label with a single dash.
func sanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(strings.ToLower(name), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// resourceNamePrefix returns "<app>-<random>" truncated to fit a pod name.
func resourceNamePrefix(appName string) (string, error) {
	suffix, err := password.Generate(suffixLength, 2, 0, true, true)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate resource name suffix")
	}
	base := sanitizeName(appName)
	if base == "" {
		base = "spark"
	}
	if limit := maxPrefixLength - suffixLength - 1; len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	return base + "-" + suffix, nil
}

// validatePrefix checks a user supplied executor pod name prefix.
func validatePrefix(prefix string) error {
	if len(prefix) > maxPrefixLength {
		return errors.Errorf("executor pod name prefix %q must be at most %d characters", prefix, maxPrefixLength)
	}
	if errs := validation.IsDNS1123Label(prefix); len(errs) > 0 {
		return errors.Errorf("invalid executor pod name prefix %q: %s", prefix, strings.Join(errs, "; "))
	}
	return nil
}

// executorPodName returns the pod name of executor id.
func executorPodName(prefix string, id int) string {
	return fmt.Sprintf(executorPodNameTemplate, prefix, id)
}

// appNameLabelValue turns an application name into a valid label value.
func appNameLabelValue(appName string) string {
	v := sanitizeName(appName)
	if len(v) > validation.LabelValueMaxLength {
		v = strings.Trim(v[:validation.LabelValueMaxLength], "-")
	}
	return v
}
