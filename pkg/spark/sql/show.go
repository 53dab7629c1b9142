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
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

const (
	DefaultShowRows     = 20
	DefaultShowTruncate = 20
	minimumColWidth     = 3
)

type showOptions struct {
	numRows  int
	truncate int
	vertical bool
}

// ShowOption configures Show and ShowString.
type ShowOption func(*showOptions)

// WithNumRows sets how many rows are printed.
func WithNumRows(n int) ShowOption {
	return func(o *showOptions) { o.numRows = n }
}

// WithTruncate cuts cells longer than n characters. 0 disables truncation
// and left-aligns cells.
func WithTruncate(n int) ShowOption {
	return func(o *showOptions) { o.truncate = n }
}

// WithVertical prints one block per row.
func WithVertical(vertical bool) ShowOption {
	return func(o *showOptions) { o.vertical = vertical }
}

// Show writes the first rows as a table to w.
func (df *DataFrame) Show(ctx context.Context, w io.Writer, opts ...ShowOption) error {
	s, err := df.ShowString(ctx, opts...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// ShowString renders the first rows as a table.
func (df *DataFrame) ShowString(ctx context.Context, opts ...ShowOption) (string, error) {
	o := showOptions{numRows: DefaultShowRows, truncate: DefaultShowTruncate}
	for _, opt := range opts {
		opt(&o)
	}
	numRows := max(o.numRows, 0)

	values, err := df.take(ctx, "showString", numRows+1)
	if err != nil {
		return "", err
	}
	hasMoreData := len(values) > numRows
	if hasMoreData {
		values = values[:numRows]
	}

	rows := make([][]string, 0, len(values)+1)
	header := df.Columns()
	for i := range header {
		header[i] = truncateCell(header[i], o.truncate)
	}
	rows = append(rows, header)
	for _, v := range values {
		cells := make([]string, len(v))
		for i, cell := range v {
			cells[i] = truncateCell(formatValue(cell), o.truncate)
		}
		rows = append(rows, cells)
	}

	var sb strings.Builder
	if o.vertical {
		renderVertical(&sb, rows)
	} else {
		renderTable(&sb, rows, o.truncate > 0)
	}

	switch {
	case o.vertical && len(rows) == 1:
		sb.WriteString("(0 rows)\n")
	case hasMoreData:
		noun := "rows"
		if numRows == 1 {
			noun = "row"
		}
		fmt.Fprintf(&sb, "only showing top %d %s\n", numRows, noun)
	}
	return sb.String(), nil
}

func renderTable(sb *strings.Builder, rows [][]string, rightAlign bool) {
	numCols := len(rows[0])
	colWidths := make([]int, numCols)
	for i := range colWidths {
		colWidths[i] = minimumColWidth
	}
	for _, row := range rows {
		for i, cell := range row {
			colWidths[i] = max(colWidths[i], displayWidth(cell))
		}
	}

	var sep strings.Builder
	sep.WriteString("+")
	for _, w := range colWidths {
		sep.WriteString(strings.Repeat("-", w))
		sep.WriteString("+")
	}
	sep.WriteString("\n")

	writeRow := func(row []string) {
		sb.WriteString("|")
		for i, cell := range row {
			pad := strings.Repeat(" ", colWidths[i]-displayWidth(cell))
			if rightAlign {
				sb.WriteString(pad + cell)
			} else {
				sb.WriteString(cell + pad)
			}
			sb.WriteString("|")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(sep.String())
	writeRow(rows[0])
	sb.WriteString(sep.String())
	for _, row := range rows[1:] {
		writeRow(row)
	}
	sb.WriteString(sep.String())
}

func renderVertical(sb *strings.Builder, rows [][]string) {
	fieldNames := rows[0]
	dataRows := rows[1:]

	fieldNameColWidth := minimumColWidth
	for _, name := range fieldNames {
		fieldNameColWidth = max(fieldNameColWidth, displayWidth(name))
	}
	dataColWidth := minimumColWidth
	for _, row := range dataRows {
		for _, cell := range row {
			dataColWidth = max(dataColWidth, displayWidth(cell))
		}
	}

	for i, row := range dataRows {
		header := fmt.Sprintf("-RECORD %d", i)
		if pad := fieldNameColWidth + dataColWidth + 5 - utf8.RuneCountInString(header); pad > 0 {
			header += strings.Repeat("-", pad)
		}
		sb.WriteString(header)
		sb.WriteString("\n")
		for j, cell := range row {
			name := fieldNames[j] + strings.Repeat(" ", fieldNameColWidth-displayWidth(fieldNames[j]))
			data := cell + strings.Repeat(" ", dataColWidth-displayWidth(cell))
			sb.WriteString(" " + name + " | " + data + " \n")
		}
	}
}

// truncateCell shortens s to n characters, ending in "..." when n >= 4.
func truncateCell(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n < 4 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// displayWidth counts East Asian wide and fullwidth runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}
