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
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	durationPattern = regexp.MustCompile(`^(-?[0-9]+)([a-z]*)$`)
	sizePattern     = regexp.MustCompile(`^([0-9]+)([a-z]*)$`)

	durationUnits = map[string]time.Duration{
		"us":  time.Microsecond,
		"ms":  time.Millisecond,
		"s":   time.Second,
		"m":   time.Minute,
		"min": time.Minute,
		"h":   time.Hour,
		"d":   24 * time.Hour,
	}

	sizeUnits = map[string]int64{
		"b":  1,
		"k":  1 << 10,
		"kb": 1 << 10,
		"m":  1 << 20,
		"mb": 1 << 20,
		"g":  1 << 30,
		"gb": 1 << 30,
		"t":  1 << 40,
		"tb": 1 << 40,
		"p":  1 << 50,
		"pb": 1 << 50,
	}
)

// ParseDuration parses values such as "30s", "1min" or "10000". A bare
// number is read in unit.
func ParseDuration(raw string, unit time.Duration) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return 0, errors.Errorf("invalid duration %q", raw)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", raw)
	}
	u := unit
	if m[2] != "" {
		var ok bool
		if u, ok = durationUnits[m[2]]; !ok {
			return 0, errors.Errorf("invalid duration suffix %q in %q", m[2], raw)
		}
	}
	d, ok := multiply(n, int64(u))
	if !ok {
		return 0, errors.Errorf("duration %q is out of range", raw)
	}
	return time.Duration(d), nil
}

// ParseSizeAsMiB parses values such as "1g", "512m" or "2048". A bare number
// is read as MiB. Fractions of a MiB are dropped, and sizes above 8 EiB are
// rejected.
func ParseSizeAsMiB(raw string) (int64, error) {
	m := sizePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return 0, errors.Errorf("invalid size %q", raw)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", raw)
	}
	u := int64(1 << 20)
	if m[2] != "" {
		var ok bool
		if u, ok = sizeUnits[m[2]]; !ok {
			return 0, errors.Errorf("invalid size suffix %q in %q", m[2], raw)
		}
	}
	bytes, ok := multiply(n, u)
	if !ok {
		return 0, errors.Errorf("size %q is out of range", raw)
	}
	return bytes / (1 << 20), nil
}

// multiply returns n*u, or false when the product does not fit in an int64.
func multiply(n, u int64) (int64, bool) {
	if u <= 0 {
		return 0, false
	}
	if n > math.MaxInt64/u || n < math.MinInt64/u {
		return 0, false
	}
	return n * u, true
}
