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

// Package master parses spark master URLs.
package master

import (
	"fmt"
	"net/url"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the cluster manager behind a master URL.
type Kind string

const (
	KindLocal      Kind = "local"
	KindKubernetes Kind = "k8s"

	kubernetesPrefix = "k8s://"
)

var (
	// ErrMissingMaster is returned when no master was configured.
	ErrMissingMaster = errors.New("a master URL must be set in your configuration")

	// ErrInvalidMaster is returned for values that cannot be parsed.
	ErrInvalidMaster = errors.New("could not parse master URL")

	localPattern = regexp.MustCompile(`^local\[([0-9]+|\*)(?:\s*,\s*([0-9]+))?\]$`)
)

// URL is a parsed master.
type URL struct {
	Kind Kind
	Raw  string

	// APIServer is the Kubernetes API server address for k8s masters.
	APIServer string

	// Threads and MaxFailures apply to local masters.
	Threads     int
	MaxFailures int
}

func (u URL) String() string {
	return u.Raw
}

// IsLocal reports whether the master runs tasks in-process only.
func (u URL) IsLocal() bool {
	return u.Kind == KindLocal
}

// Parse validates raw and returns its parsed form.
func Parse(raw string) (URL, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return URL{}, ErrMissingMaster
	case raw == "local":
		return URL{Kind: KindLocal, Raw: raw, Threads: 1, MaxFailures: 1}, nil
	case strings.HasPrefix(raw, "local["):
		return parseLocal(raw)
	case strings.HasPrefix(raw, kubernetesPrefix):
		return parseKubernetes(raw)
	}
	return URL{}, errors.Wrapf(ErrInvalidMaster, "%q", raw)
}

func parseLocal(raw string) (URL, error) {
	m := localPattern.FindStringSubmatch(raw)
	if m == nil {
		return URL{}, errors.Wrapf(ErrInvalidMaster, "%q", raw)
	}
	u := URL{Kind: KindLocal, Raw: raw, MaxFailures: 1}
	if m[1] == "*" {
		u.Threads = runtime.NumCPU()
	} else {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: thread count must be positive", raw)
		}
		u.Threads = n
	}
	if m[2] != "" {
		f, err := strconv.Atoi(m[2])
		if err != nil || f < 1 {
			return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: max failures must be positive", raw)
		}
		u.MaxFailures = f
	}
	return u, nil
}

func parseKubernetes(raw string) (URL, error) {
	server := strings.TrimPrefix(raw, kubernetesPrefix)
	if server == "" {
		return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: missing API server", raw)
	}
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	parsed, err := url.Parse(server)
	if err != nil {
		return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: %v", raw, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: unsupported scheme %s", raw, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: missing host", raw)
	}
	if port := parsed.Port(); port != "" {
		if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			return URL{}, errors.Wrapf(ErrInvalidMaster, "%q: invalid port %s", raw, port)
		}
	}
	return URL{
		Kind:      KindKubernetes,
		Raw:       raw,
		APIServer: fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, strings.TrimSuffix(parsed.Path, "/")),
	}, nil
}
