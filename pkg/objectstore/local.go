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
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// localProvider keeps output files in a directory on disk. Files are written
// under a temporary name and renamed, so readers never see a partial part.
type localProvider struct {
	root string
}

func newLocalProvider(cfg Config) (Provider, error) {
	root := filepath.Join(cfg.Bucket, cfg.Prefix)
	if root == "" || root == "." {
		return nil, errors.New("local output directory is required")
	}
	return &localProvider{root: root}, nil
}

func (p *localProvider) Objects(_ context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{Key: filepath.ToSlash(rel), Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", p.root)
	}
	return objects, nil
}

func (p *localProvider) Put(_ context.Context, key string, body io.Reader, _ int64) (ObjectInfo, error) {
	target := filepath.Join(p.root, filepath.FromSlash(key))
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ObjectInfo{}, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return ObjectInfo{}, err
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), target)
	}
	if err != nil {
		return ObjectInfo{}, errors.Wrapf(err, "failed to write %s", target)
	}
	return ObjectInfo{Key: key, Size: written}, nil
}

func (p *localProvider) Remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(p.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *localProvider) Close() error { return nil }
