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

package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrTypeMismatch is returned when a typed getter reads a column of another type.
var ErrTypeMismatch = errors.New("type mismatch")

// Row is one materialized record.
type Row struct {
	schema *StructType
	values []any
}

// NewRow builds a row for schema.
func NewRow(schema *StructType, values ...any) Row {
	return Row{schema: schema, values: values}
}

func (r Row) Len() int {
	return len(r.values)
}

// Get returns the value at i.
func (r Row) Get(i int) any {
	return r.values[i]
}

// IsNull reports whether the value at i is null.
func (r Row) IsNull(i int) bool {
	return r.values[i] == nil
}

// GetLong returns the value at i as an int64.
func (r Row) GetLong(i int) (int64, error) {
	switch v := r.values[i].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case nil:
		return 0, errors.Wrapf(ErrTypeMismatch, "value at %d is null", i)
	default:
		return 0, errors.Wrapf(ErrTypeMismatch, "value at %d is %T", i, v)
	}
}

// GetString returns the value at i as a string.
func (r Row) GetString(i int) (string, error) {
	v, ok := r.values[i].(string)
	if !ok {
		return "", errors.Wrapf(ErrTypeMismatch, "value at %d is %T", i, r.values[i])
	}
	return v, nil
}

// GetByName returns the value of the column called name.
func (r Row) GetByName(name string) (any, error) {
	if r.schema == nil {
		return nil, errors.Wrapf(ErrColumnNotFound, "row has no schema, cannot resolve %q", name)
	}
	i, err := r.schema.FieldIndex(name)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

// Schema returns the schema of the row, which may be nil.
func (r Row) Schema() *StructType {
	return r.schema
}

// Values returns a copy of the row's values.
func (r Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// String renders the row as [v1,v2,...].
func (r Row) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// formatValue renders a cell value. Doubles keep a decimal point and
// null prints as "null".
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatDouble(x)
	}
	return fmt.Sprint(v)
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'E', -1, 64), "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	negative := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if exp == "" {
		exp = "0"
	}
	if negative {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}
