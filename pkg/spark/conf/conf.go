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

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrFrozen is returned when a frozen conf is modified.
	ErrFrozen = errors.New("spark conf is frozen")

	// ErrEmptyKey is returned when a key is blank.
	ErrEmptyKey = errors.New("spark conf key must not be empty")
)

// KeyValue is a single conf entry.
type KeyValue struct {
	Key   string
	Value string
}

// Reader is the read-only view of a Conf.
type Reader interface {
	Get(key string) (string, bool)
	GetOrDefault(key, def string) string
	Contains(key string) bool
	GetInt(key string, def int) (int, error)
	GetFloat(key string, def float64) (float64, error)
	GetBool(key string, def bool) (bool, error)
	GetDuration(key string, def, unit time.Duration) (time.Duration, error)
	GetSizeAsMiB(key string, def int64) (int64, error)
	All() []KeyValue
	WithPrefix(prefix string) map[string]string
	Redacted() []KeyValue
}

// Conf holds spark options in the order they were first set.
type Conf struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[string, string]
	frozen  bool
}

var _ Reader = &Conf{}

// New returns an empty, writable conf.
func New() *Conf {
	return &Conf{entries: orderedmap.New[string, string]()}
}

// Set stores value under key, replacing any previous value.
func (c *Conf) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return errors.Wrapf(ErrFrozen, "cannot set %s", key)
	}
	c.entries.Set(key, value)
	return nil
}

// SetIfMissing stores value only when key has no value yet.
func (c *Conf) SetIfMissing(key, value string) error {
	if c.Contains(key) {
		return nil
	}
	return c.Set(key, value)
}

// SetAll stores every entry of values. Keys are applied in sorted order so
// the resulting listing is stable.
func (c *Conf) SetAll(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Set(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes key.
func (c *Conf) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return errors.Wrapf(ErrFrozen, "cannot remove %s", key)
	}
	c.entries.Delete(key)
	return nil
}

// Clone returns a writable copy.
func (c *Conf) Clone() *Conf {
	clone := New()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		clone.entries.Set(pair.Key, pair.Value)
	}
	return clone
}

// Freeze returns an immutable copy of c.
func (c *Conf) Freeze() *Conf {
	frozen := c.Clone()
	frozen.frozen = true
	return frozen
}

// Frozen reports whether the conf rejects writes.
func (c *Conf) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

func (c *Conf) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Get(key)
}

func (c *Conf) GetOrDefault(key, def string) string {
	if v, ok := c.Get(key); ok {
		return v
	}
	return def
}

func (c *Conf) Contains(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Conf) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

func (c *Conf) GetInt(key string, def int) (int, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, errors.Wrapf(err, "%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func (c *Conf) GetFloat(key string, def float64) (float64, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, errors.Wrapf(err, "%s must be a number, got %q", key, v)
	}
	return f, nil
}

func (c *Conf) GetBool(key string, def bool) (bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, errors.Wrapf(err, "%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// GetDuration reads a time conf. A value without a suffix is read in unit.
func (c *Conf) GetDuration(key string, def, unit time.Duration) (time.Duration, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	d, err := ParseDuration(v, unit)
	if err != nil {
		return def, errors.Wrapf(err, "invalid value for %s", key)
	}
	return d, nil
}

// GetSizeAsMiB reads a size conf in mebibytes. A value without a suffix is MiB.
func (c *Conf) GetSizeAsMiB(key string, def int64) (int64, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	n, err := ParseSizeAsMiB(v)
	if err != nil {
		return def, errors.Wrapf(err, "invalid value for %s", key)
	}
	return n, nil
}

// All returns every entry in insertion order.
func (c *Conf) All() []KeyValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]KeyValue, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, KeyValue{Key: pair.Key, Value: pair.Value})
	}
	return out
}

// WithPrefix returns the entries under prefix with the prefix stripped.
func (c *Conf) WithPrefix(prefix string) map[string]string {
	out := map[string]string{}
	for _, kv := range c.All() {
		if strings.HasPrefix(kv.Key, prefix) && len(kv.Key) > len(prefix) {
			out[strings.TrimPrefix(kv.Key, prefix)] = kv.Value
		}
	}
	return out
}
