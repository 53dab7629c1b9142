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
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/FelipeFurlaneto/dataplatform/pkg/objectstore"
)

// SaveMode decides what Save does when the target already has data.
type SaveMode string

const (
	SaveModeErrorIfExists SaveMode = "errorifexists"
	SaveModeOverwrite     SaveMode = "overwrite"
	SaveModeAppend        SaveMode = "append"
	SaveModeIgnore        SaveMode = "ignore"

	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

var (
	// ErrPathExists is returned by SaveModeErrorIfExists when the target has data.
	ErrPathExists = errors.New("path already exists")

	// ErrUnsupportedFormat is returned for unknown output formats.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrInvalidSaveMode is returned for unknown save modes.
	ErrInvalidSaveMode = errors.New("unknown save mode")
)

// ParseSaveMode accepts the names used by DataFrameWriter.mode.
func ParseSaveMode(mode string) (SaveMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "error", "errorifexists", "default":
		return SaveModeErrorIfExists, nil
	case "overwrite":
		return SaveModeOverwrite, nil
	case "append":
		return SaveModeAppend, nil
	case "ignore":
		return SaveModeIgnore, nil
	}
	return "", errors.Wrapf(ErrInvalidSaveMode, "%q, accepted save modes are 'overwrite', 'append', 'ignore', 'error', 'errorifexists'", mode)
}

// DataFrameWriter saves a DataFrame as a single part file plus a _SUCCESS
// marker under a local directory or object store prefix.
type DataFrameWriter struct {
	df      *DataFrame
	format  string
	mode    SaveMode
	err     error
	options map[string]string
}

func newWriter(df *DataFrame) *DataFrameWriter {
	return &DataFrameWriter{df: df, format: FormatParquet, mode: SaveModeErrorIfExists, options: map[string]string{}}
}

// Format sets the output format: csv, json or parquet.
func (w *DataFrameWriter) Format(format string) *DataFrameWriter {
	w.format = strings.ToLower(strings.TrimSpace(format))
	return w
}

// Mode sets the save mode.
func (w *DataFrameWriter) Mode(mode string) *DataFrameWriter {
	m, err := ParseSaveMode(mode)
	if err != nil {
		w.err = err
		return w
	}
	w.mode = m
	return w
}

// Option sets a format or connection option, e.g. "header" for csv or
// "endpoint" for the object store.
func (w *DataFrameWriter) Option(key, value string) *DataFrameWriter {
	w.options[key] = value
	return w
}

// Save evaluates the DataFrame and writes it under path.
func (w *DataFrameWriter) Save(ctx context.Context, path string) error {
	logger := log.FromContext(ctx).WithName("writer").WithValues("path", path, "format", w.format)
	if w.err != nil {
		return w.err
	}
	ext, err := fileExtension(w.format)
	if err != nil {
		return err
	}

	out, err := objectstore.OpenOutput(ctx, path, w.options)
	if err != nil {
		return err
	}
	defer out.Close()

	existing, err := out.Files(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		switch w.mode {
		case SaveModeErrorIfExists:
			return errors.Wrapf(ErrPathExists, "%s", path)
		case SaveModeIgnore:
			logger.Info("Output exists, skipping write")
			return nil
		case SaveModeOverwrite:
			if err := out.Clear(ctx); err != nil {
				return err
			}
		}
	}

	values, err := w.df.collectValues(ctx, "save")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "spark-part-*."+ext)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := w.encode(tmp, values); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to encode %s", w.format)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	key := objectstore.PartKey(0, uuid.NewString(), ext)
	if _, err := out.PutFile(ctx, key, tmp.Name()); err != nil {
		return err
	}
	if err := out.Commit(ctx); err != nil {
		return err
	}

	w.df.env.Metrics.AddRowsWritten(w.format, int64(len(values)))
	logger.Info("Saved DataFrame", "rows", len(values), "file", key, "mode", string(w.mode))
	return nil
}

func fileExtension(format string) (string, error) {
	switch format {
	case FormatCSV:
		return "csv", nil
	case FormatJSON:
		return "json", nil
	case FormatParquet:
		return "snappy.parquet", nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", format)
}

func (w *DataFrameWriter) encode(out io.Writer, values [][]any) error {
	s := w.df.Schema()
	switch w.format {
	case FormatCSV:
		return w.encodeCSV(out, s, values)
	case FormatJSON:
		return encodeJSON(out, s, values)
	case FormatParquet:
		return encodeParquet(out, s, values)
	}
	return errors.Wrapf(ErrUnsupportedFormat, "%q", w.format)
}

func (w *DataFrameWriter) encodeCSV(out io.Writer, s StructType, values [][]any) error {
	cw := csv.NewWriter(out)
	if sep := firstOption(w.options, "sep", "delimiter"); sep != "" {
		r := []rune(sep)
		if len(r) != 1 {
			return errors.Errorf("csv delimiter must be a single character, got %q", sep)
		}
		cw.Comma = r[0]
	}
	if header, _ := strconv.ParseBool(w.options["header"]); header {
		if err := cw.Write(s.FieldNames()); err != nil {
			return err
		}
	}
	record := make([]string, s.Len())
	for _, row := range values {
		for i, v := range row {
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeJSON writes one object per line with fields in schema order. Null
// fields are left out.
func encodeJSON(out io.Writer, s StructType, values [][]any) error {
	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, out, 4096)
	for _, row := range values {
		stream.WriteObjectStart()
		first := true
		for i, v := range row {
			if v == nil {
				continue
			}
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(s.Fields[i].Name)
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				stream.WriteString(formatDouble(f))
				continue
			}
			stream.WriteVal(v)
		}
		stream.WriteObjectEnd()
		stream.WriteRaw("\n")
		if stream.Buffered() > 1<<16 {
			if err := stream.Flush(); err != nil {
				return err
			}
		}
		if stream.Error != nil {
			return stream.Error
		}
	}
	return stream.Flush()
}

func parquetNode(f StructField) parquet.Node {
	var n parquet.Node
	switch f.Type {
	case LongType:
		n = parquet.Int(64)
	case IntegerType:
		n = parquet.Int(32)
	case DoubleType:
		n = parquet.Leaf(parquet.DoubleType)
	case BooleanType:
		n = parquet.Leaf(parquet.BooleanType)
	default:
		n = parquet.String()
	}
	if f.Nullable {
		n = parquet.Optional(n)
	}
	return n
}

func encodeParquet(out io.Writer, s StructType, values [][]any) error {
	group := parquet.Group{}
	for _, f := range s.Fields {
		if _, dup := group[f.Name]; dup {
			return errors.Errorf("duplicate column %q cannot be written as parquet", f.Name)
		}
		group[f.Name] = parquetNode(f)
	}
	schema := parquet.NewSchema("spark_schema", group)

	// parquet orders group fields by name, so map them back to our columns
	leaves := schema.Fields()
	columns := make([]int, len(leaves))
	for i, leaf := range leaves {
		idx, err := s.FieldIndex(leaf.Name())
		if err != nil {
			return err
		}
		columns[i] = idx
	}

	writer := parquet.NewGenericWriter[any](out, schema, parquet.Compression(&parquet.Snappy))
	rows := make([]parquet.Row, 0, len(values))
	for _, v := range values {
		row := make(parquet.Row, len(leaves))
		for colIdx, leaf := range leaves {
			cell := v[columns[colIdx]]
			if cell == nil {
				row[colIdx] = parquet.ValueOf(nil).Level(0, 0, colIdx)
				continue
			}
			defLevel := 0
			if leaf.Optional() {
				defLevel = 1
			}
			row[colIdx] = parquet.ValueOf(cell).Level(0, defLevel, colIdx)
		}
		rows = append(rows, row)
	}
	if _, err := writer.WriteRows(rows); err != nil {
		return err
	}
	return writer.Close()
}

func firstOption(options map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := options[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
