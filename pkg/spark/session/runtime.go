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
	"github.com/pkg/errors"

	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
)

// ErrStaticConfig is returned when a static option is set on a running session.
var ErrStaticConfig = errors.New("cannot modify the value of a static config")

// RuntimeConfig is the mutable view of a running session's options. Reads
// fall back to the options the session started with.
type RuntimeConfig struct {
	static  conf.Reader
	overlay *conf.Conf
}

func newRuntimeConfig(static conf.Reader) *RuntimeConfig {
	return &RuntimeConfig{static: static, overlay: conf.New()}
}

// Set changes a runtime option.
func (r *RuntimeConfig) Set(key, value string) error {
	if conf.IsStatic(key) {
		return errors.Wrapf(ErrStaticConfig, "%s", key)
	}
	return r.overlay.Set(key, value)
}

// Unset removes a runtime option set with Set.
func (r *RuntimeConfig) Unset(key string) error {
	if conf.IsStatic(key) {
		return errors.Wrapf(ErrStaticConfig, "%s", key)
	}
	return r.overlay.Remove(key)
}

// Get returns the runtime value of key, or the startup value.
func (r *RuntimeConfig) Get(key string) (string, bool) {
	if v, ok := r.overlay.Get(key); ok {
		return v, true
	}
	return r.static.Get(key)
}

// GetOrDefault returns the value of key or def.
func (r *RuntimeConfig) GetOrDefault(key, def string) string {
	if v, ok := r.Get(key); ok {
		return v
	}
	return def
}

// IsModifiable reports whether Set accepts key.
func (r *RuntimeConfig) IsModifiable(key string) bool {
	return !conf.IsStatic(key)
}

// All returns the startup options followed by runtime overrides, with
// redaction applied.
func (r *RuntimeConfig) All() []conf.KeyValue {
	out := r.static.Redacted()
	index := make(map[string]int, len(out))
	for i, kv := range out {
		index[kv.Key] = i
	}
	for _, kv := range r.overlay.Redacted() {
		if i, ok := index[kv.Key]; ok {
			out[i] = kv
			continue
		}
		out = append(out, kv)
	}
	return out
}
