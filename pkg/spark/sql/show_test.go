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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbers(t *testing.T, end int64) *DataFrame {
	t.Helper()
	df, err := Range(Env{Runner: &serialRunner{}}, 0, end, 1, 4)
	require.NoError(t, err)
	named, err := df.ToDF("number")
	require.NoError(t, err)
	return named
}

func TestShowDefault(t *testing.T) {
	want := "" +
		"+------+\n" +
		"|number|\n" +
		"+------+\n" +
		"|     0|\n" +
		"|     1|\n" +
		"|     2|\n" +
		"|     3|\n" +
		"|     4|\n" +
		"|     5|\n" +
		"|     6|\n" +
		"|     7|\n" +
		"|     8|\n" +
		"|     9|\n" +
		"|    10|\n" +
		"|    11|\n" +
		"|    12|\n" +
		"|    13|\n" +
		"|    14|\n" +
		"|    15|\n" +
		"|    16|\n" +
		"|    17|\n" +
		"|    18|\n" +
		"|    19|\n" +
		"+------+\n" +
		"only showing top 20 rows\n"

	var buf bytes.Buffer
	require.NoError(t, numbers(t, 1000).Show(context.Background(), &buf))
	assert.Equal(t, want, buf.String())
}

func TestShowAllRowsHasNoFooter(t *testing.T) {
	got, err := numbers(t, 3).ShowString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+------+\n|number|\n+------+\n|     0|\n|     1|\n|     2|\n+------+\n", got)
}

func TestShowSingleRowFooter(t *testing.T) {
	got, err := numbers(t, 5).ShowString(context.Background(), WithNumRows(1))
	require.NoError(t, err)
	assert.Equal(t, "+------+\n|number|\n+------+\n|     0|\n+------+\nonly showing top 1 row\n", got)
}

func TestShowWithoutTruncateIsLeftAligned(t *testing.T) {
	got, err := numbers(t, 2).ShowString(context.Background(), WithTruncate(0))
	require.NoError(t, err)
	assert.Equal(t, "+------+\n|number|\n+------+\n|0     |\n|1     |\n+------+\n", got)
}

func TestShowMinimumWidthAndTruncation(t *testing.T) {
	df, err := Range(Env{Runner: &serialRunner{}}, 0, 1, 1, 1)
	require.NoError(t, err)

	got, err := df.ShowString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+---+\n| id|\n+---+\n|  0|\n+---+\n", got)

	long, err := df.ToDF("a_very_long_column_name_here")
	require.NoError(t, err)
	got, err = long.ShowString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+--------------------+\n|a_very_long_colum...|\n+--------------------+\n|                   0|\n+--------------------+\n", got)
}

func TestShowVertical(t *testing.T) {
	df, err := Range(Env{Runner: &serialRunner{}}, 0, 2, 1, 1)
	require.NoError(t, err)

	got, err := df.ShowString(context.Background(), WithVertical(true))
	require.NoError(t, err)
	assert.Equal(t, "-RECORD 0--\n id  | 0   \n-RECORD 1--\n id  | 1   \n", got)

	got, err = numbers(t, 10).ShowString(context.Background(), WithVertical(true), WithNumRows(1))
	require.NoError(t, err)
	assert.Equal(t, "-RECORD 0-----\n number | 0   \nonly showing top 1 row\n", got)
}

func TestShowEmpty(t *testing.T) {
	empty := numbers(t, 0)

	got, err := empty.ShowString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+------+\n|number|\n+------+\n+------+\n", got)

	got, err = empty.ShowString(context.Background(), WithVertical(true))
	require.NoError(t, err)
	assert.Equal(t, "(0 rows)\n", got)
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, displayWidth("hello"))
	assert.Equal(t, 4, displayWidth("日本"))
	assert.Equal(t, "abcdefg", truncateCell("abcdefg", 0))
	assert.Equal(t, "abc", truncateCell("abcdefg", 3))
	assert.Equal(t, "a...", truncateCell("abcdefg", 4))
}
