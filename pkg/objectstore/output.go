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

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SuccessMarker is written last. Its presence means every part file of the
// directory is complete.
const SuccessMarker = "_SUCCESS"

// PartKey names the file written for one partition of a write job.
func PartKey(partition int, jobID, ext string) string {
	return fmt.Sprintf("part-%05d-%s-c000.%s", partition, jobID, ext)
}

// ContentType returns the media type stored with key.
func ContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(key, ".csv"):
		return "text/csv"
	case strings.HasSuffix(key, ".json"):
		return "application/x-ndjson"
	}
	return "application/octet-stream"
}

// Output is the target directory of a DataFrame write.
type Output struct {
	provider Provider
	location string
}

// OpenOutput opens the directory at location with the writer options.
func OpenOutput(ctx context.Context, location string, options map[string]string) (*Output, error) {
	provider, _, err := Open(ctx, location, options)
	if err != nil {
		return nil, err
	}
	return NewOutput(provider, location), nil
}

// NewOutput wraps an open provider.
func NewOutput(provider Provider, location string) *Output {
	return &Output{provider: provider, location: location}
}

func (o *Output) Location() string { return o.location }

func (o *Output) join(key string) string {
	return strings.TrimRight(o.location, "/") + "/" + key
}

// Files lists the directory, sorted by key.
func (o *Output) Files(ctx context.Context) ([]ObjectInfo, error) {
	objects, err := o.provider.Objects(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", o.location)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Committed reports whether the directory carries a success marker.
func (o *Output) Committed(ctx context.Context) (bool, error) {
	objects, err := o.Files(ctx)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Key == SuccessMarker {
			return true, nil
		}
	}
	return false, nil
}

// Clear removes every file. The success marker goes first so an interrupted
// clear never leaves a directory that looks complete.
func (o *Output) Clear(ctx context.Context) error {
	objects, err := o.Files(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Key == SuccessMarker && objects[j].Key != SuccessMarker
	})
	for _, obj := range objects {
		if err := o.provider.Remove(ctx, obj.Key); err != nil {
			return errors.Wrapf(err, "failed to remove %s", o.join(obj.Key))
		}
	}
	return nil
}

// PutFile uploads the local file at localPath as key.
func (o *Output) PutFile(ctx context.Context, key, localPath string) (ObjectInfo, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := o.provider.Put(ctx, key, file, stat.Size())
	if err != nil {
		return ObjectInfo{}, errors.Wrapf(err, "failed to write %s", o.join(key))
	}
	return info, nil
}

// Commit writes the empty success marker.
func (o *Output) Commit(ctx context.Context) error {
	if _, err := o.provider.Put(ctx, SuccessMarker, bytes.NewReader(nil), 0); err != nil {
		return errors.Wrapf(err, "failed to commit %s", o.location)
	}
	return nil
}

func (o *Output) Close() error {
	return o.provider.Close()
}
