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
	"context"
	"io"
	"math"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/FelipeFurlaneto/dataplatform/pkg/metrics"
)

const limitScaleUpFactor = 4

var (
	// ErrColumnCount is returned when ToDF gets the wrong number of names.
	ErrColumnCount = errors.New("number of column names does not match number of columns")

	// ErrNegativeLimit is returned for Limit(n) with n < 0.
	ErrNegativeLimit = errors.New("limit must be non-negative")
)

// TaskRunner runs one task per partition and returns the first failure.
type TaskRunner interface {
	RunJob(ctx context.Context, description string, partitions int, task func(ctx context.Context, partition int) error) error
}

// Env carries what a DataFrame needs to execute.
type Env struct {
	Runner  TaskRunner
	Metrics *metrics.Collector
}

// DataFrame is a lazily evaluated table. Nothing runs until an action such
// as Collect, Count or Show is called.
type DataFrame struct {
	env  Env
	plan plan
}

// Range returns a single column DataFrame named "id" holding start, start+step,
// ... up to but excluding end.
func Range(env Env, start, end, step int64, numPartitions int) (*DataFrame, error) {
	if env.Runner == nil {
		return nil, errors.New("a task runner is required")
	}
	p, err := newRangePlan(start, end, step, numPartitions)
	if err != nil {
		return nil, err
	}
	return &DataFrame{env: env, plan: p}, nil
}

// Schema returns the output schema.
func (df *DataFrame) Schema() StructType {
	return df.plan.schema()
}

// Columns returns the column names.
func (df *DataFrame) Columns() []string {
	return df.plan.schema().FieldNames()
}

// NumPartitions returns the number of partitions evaluated by actions.
func (df *DataFrame) NumPartitions() int {
	return df.plan.numPartitions()
}

// ToDF renames every column, in order.
func (df *DataFrame) ToDF(names ...string) (*DataFrame, error) {
	s := df.plan.schema()
	if len(names) != s.Len() {
		return nil, errors.Wrapf(ErrColumnCount, "old column names (%d): %v, new column names (%d): %v",
			s.Len(), s.FieldNames(), len(names), names)
	}
	return &DataFrame{env: df.env, plan: &renamePlan{child: df.plan, out: s.withNames(names)}}, nil
}

// Limit keeps the first n rows.
func (df *DataFrame) Limit(n int) (*DataFrame, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrNegativeLimit, "got %d", n)
	}
	return &DataFrame{env: df.env, plan: &limitPlan{child: df.plan, n: n}}, nil
}

// Explain returns the plan tree.
func (df *DataFrame) Explain() string {
	return df.plan.describe()
}

// Write returns a writer for saving the rows.
func (df *DataFrame) Write() *DataFrameWriter {
	return newWriter(df)
}

// Collect evaluates every partition and returns all rows in order.
func (df *DataFrame) Collect(ctx context.Context) ([]Row, error) {
	values, err := df.collectValues(ctx, "collect")
	if err != nil {
		return nil, err
	}
	return df.toRows(values), nil
}

// Take returns the first n rows, evaluating as few partitions as possible.
func (df *DataFrame) Take(ctx context.Context, n int) ([]Row, error) {
	values, err := df.take(ctx, "take", n)
	if err != nil {
		return nil, err
	}
	return df.toRows(values), nil
}

// Count returns the number of rows.
func (df *DataFrame) Count(ctx context.Context) (int64, error) {
	var total atomic.Int64
	err := df.env.Runner.RunJob(ctx, "count", df.plan.numPartitions(), func(ctx context.Context, partition int) error {
		rows, err := df.plan.compute(ctx, partition)
		if err != nil {
			return err
		}
		total.Add(int64(len(rows)))
		return nil
	})
	if err != nil {
		return 0, err
	}
	count := total.Load()
	if limit := globalLimit(df.plan); limit >= 0 && count > int64(limit) {
		count = int64(limit)
	}
	return count, nil
}

// PrintSchema writes the schema tree to w.
func (df *DataFrame) PrintSchema(w io.Writer) error {
	_, err := io.WriteString(w, df.plan.schema().TreeString())
	return err
}

func (df *DataFrame) toRows(values [][]any) []Row {
	s := df.plan.schema()
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = NewRow(&s, v...)
	}
	return rows
}

func (df *DataFrame) collectValues(ctx context.Context, description string) ([][]any, error) {
	parts := make([]int, df.plan.numPartitions())
	for i := range parts {
		parts[i] = i
	}
	results, err := df.runPartitions(ctx, description, parts)
	if err != nil {
		return nil, err
	}
	var out [][]any
	for _, r := range results {
		out = append(out, r...)
	}
	if limit := globalLimit(df.plan); limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// take scans one partition first and then grows the number of partitions
// tried per round by up to limitScaleUpFactor until n rows are found.
func (df *DataFrame) take(ctx context.Context, description string, n int) ([][]any, error) {
	if limit := globalLimit(df.plan); limit >= 0 && limit < n {
		n = limit
	}
	if n <= 0 {
		return nil, nil
	}
	total := df.plan.numPartitions()
	var buf [][]any
	scanned := 0
	for len(buf) < n && scanned < total {
		tryParts := 1
		if scanned > 0 {
			scaleUp := scanned * limitScaleUpFactor
			if len(buf) == 0 {
				tryParts = scaleUp
			} else {
				tryParts = int(math.Ceil(1.5*float64(n)*float64(scanned)/float64(len(buf)))) - scanned
				tryParts = min(max(tryParts, 1), scaleUp)
			}
		}
		end := min(scanned+tryParts, total)
		parts := make([]int, 0, end-scanned)
		for p := scanned; p < end; p++ {
			parts = append(parts, p)
		}
		results, err := df.runPartitions(ctx, description, parts)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			buf = append(buf, r...)
		}
		scanned = end
	}
	if len(buf) > n {
		buf = buf[:n]
	}
	return buf, nil
}

func (df *DataFrame) runPartitions(ctx context.Context, description string, parts []int) ([][][]any, error) {
	results := make([][][]any, len(parts))
	err := df.env.Runner.RunJob(ctx, description, len(parts), func(ctx context.Context, i int) error {
		rows, err := df.plan.compute(ctx, parts[i])
		if err != nil {
			return err
		}
		results[i] = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
