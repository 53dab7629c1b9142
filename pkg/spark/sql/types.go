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
	"strings"

	"github.com/pkg/errors"
)

// ErrColumnNotFound is returned when a column name is not in the schema.
var ErrColumnNotFound = errors.New("column not found")

// DataType is the type of a column.
type DataType int

const (
	LongType DataType = iota
	IntegerType
	StringType
	DoubleType
	BooleanType
)

// TypeName is the name printed by PrintSchema.
func (t DataType) TypeName() string {
	switch t {
	case LongType:
		return "long"
	case IntegerType:
		return "integer"
	case StringType:
		return "string"
	case DoubleType:
		return "double"
	case BooleanType:
		return "boolean"
	}
	return "unknown"
}

// SimpleString is the SQL name of the type.
func (t DataType) SimpleString() string {
	switch t {
	case LongType:
		return "bigint"
	case IntegerType:
		return "int"
	}
	return t.TypeName()
}

func (t DataType) String() string {
	return t.TypeName()
}

// StructField is one column of a schema.
type StructField struct {
	Name     string
	Type     DataType
	Nullable bool
}

// StructType is an ordered list of columns.
type StructType struct {
	Fields []StructField
}

// NewStructType returns a schema with fields.
func NewStructType(fields ...StructField) StructType {
	return StructType{Fields: fields}
}

func (s StructType) Len() int {
	return len(s.Fields)
}

// FieldNames returns the column names in order.
func (s StructType) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldIndex returns the position of the column called name.
func (s StructType) FieldIndex(name string) (int, error) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrColumnNotFound, "%q not in [%s]", name, strings.Join(s.FieldNames(), ", "))
}

// TreeString renders the schema the way printSchema does.
func (s StructType) TreeString() string {
	var sb strings.Builder
	sb.WriteString("root\n")
	for _, f := range s.Fields {
		sb.WriteString(" |-- ")
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Type.TypeName())
		if f.Nullable {
			sb.WriteString(" (nullable = true)\n")
		} else {
			sb.WriteString(" (nullable = false)\n")
		}
	}
	return sb.String()
}

// SimpleString renders the schema as struct<name:type,...>.
func (s StructType) SimpleString() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = f.Name + ":" + f.Type.SimpleString()
	}
	return "struct<" + strings.Join(parts, ",") + ">"
}

// withNames returns a copy of s with its columns renamed.
func (s StructType) withNames(names []string) StructType {
	fields := make([]StructField, len(s.Fields))
	copy(fields, s.Fields)
	for i := range fields {
		fields[i].Name = names[i]
	}
	return StructType{Fields: fields}
}
