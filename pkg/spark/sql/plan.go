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
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// ErrZeroStep is returned for a range with step 0.
var ErrZeroStep = errors.New("the step of a range must not be 0")

// plan is a node of a lazily evaluated query. Every partition can be
// computed on its own.
type plan interface {
	schema() StructType
	numPartitions() int
	compute(ctx context.Context, partition int) ([][]any, error)
	describe() string
}

// rangePlan generates [start, end) by step, split into slices partitions.
type rangePlan struct {
	start, end, step int64
	slices           int
	numElements      *big.Int
}

func newRangePlan(start, end, step int64, slices int) (*rangePlan, error) {
	if step == 0 {
		return nil, ErrZeroStep
	}
	if slices < 1 {
		return nil, errors.Errorf("number of partitions must be positive, got %d", slices)
	}
	return &rangePlan{start: start, end: end, step: step, slices: slices, numElements: rangeLength(start, end, step)}, nil
}

// rangeLength is ceil((end-start)/step), or 0 when step points away from end.
func rangeLength(start, end, step int64) *big.Int {
	diff := new(big.Int).Sub(big.NewInt(end), big.NewInt(start))
	bigStep := big.NewInt(step)
	if diff.Sign() == 0 || diff.Sign() != bigStep.Sign() {
		return new(big.Int)
	}
	q, r := new(big.Int).QuoRem(diff, bigStep, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func (p *rangePlan) schema() StructType {
	return NewStructType(StructField{Name: "id", Type: LongType, Nullable: false})
}

func (p *rangePlan) numPartitions() int {
	return p.slices
}

// bounds returns the first element and element count of partition i using
// start + (i*n/slices)*step, so partitions differ in size by at most one.
func (p *rangePlan) bounds(i int) (int64, int64) {
	slices := big.NewInt(int64(p.slices))
	offset := func(i int) *big.Int {
		o := new(big.Int).Mul(big.NewInt(int64(i)), p.numElements)
		return o.Quo(o, slices)
	}
	lo, hi := offset(i), offset(i+1)
	first := new(big.Int).Mul(lo, big.NewInt(p.step))
	first.Add(first, big.NewInt(p.start))
	count := new(big.Int).Sub(hi, lo)
	return first.Int64(), count.Int64()
}

func (p *rangePlan) compute(ctx context.Context, partition int) ([][]any, error) {
	first, count := p.bounds(partition)
	rows := make([][]any, 0, min(count, 1<<16))
	v := first
	for k := int64(0); k < count; k++ {
		if k%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rows = append(rows, []any{v})
		v += p.step
	}
	return rows, nil
}

func (p *rangePlan) describe() string {
	return fmt.Sprintf("Range (%d, %d, step=%d, splits=%d)", p.start, p.end, p.step, p.slices)
}

// renamePlan replaces column names.
type renamePlan struct {
	child plan
	out   StructType
}

func (p *renamePlan) schema() StructType { return p.out }

func (p *renamePlan) numPartitions() int { return p.child.numPartitions() }

func (p *renamePlan) compute(ctx context.Context, partition int) ([][]any, error) {
	return p.child.compute(ctx, partition)
}

func (p *renamePlan) describe() string {
	return fmt.Sprintf("Project %v\n+- %s", p.out.FieldNames(), p.child.describe())
}

// limitPlan keeps the first n rows. Each partition is cut to n locally and
// the result is cut to n again when collected.
type limitPlan struct {
	child plan
	n     int
}

func (p *limitPlan) schema() StructType { return p.child.schema() }

func (p *limitPlan) numPartitions() int { return p.child.numPartitions() }

func (p *limitPlan) compute(ctx context.Context, partition int) ([][]any, error) {
	rows, err := p.child.compute(ctx, partition)
	if err != nil {
		return nil, err
	}
	if len(rows) > p.n {
		rows = rows[:p.n]
	}
	return rows, nil
}

func (p *limitPlan) describe() string {
	return fmt.Sprintf("GlobalLimit %d\n+- %s", p.n, p.child.describe())
}

// globalLimit returns the smallest limit in the plan, or -1 if there is none.
func globalLimit(p plan) int {
	limit := -1
	for p != nil {
		switch node := p.(type) {
		case *limitPlan:
			if limit < 0 || node.n < limit {
				limit = node.n
			}
			p = node.child
		case *renamePlan:
			p = node.child
		default:
			p = nil
		}
	}
	return limit
}
