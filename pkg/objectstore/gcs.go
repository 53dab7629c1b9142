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
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// gcsChunkSize matches the client's default resumable chunk. Smaller files
// are sent in one request.
const gcsChunkSize = 16 << 20

type gcsProvider struct {
	bucket *storage.BucketHandle
	name   string
	root   string
	client *storage.Client
}

func newGCSProvider(ctx context.Context, cfg Config) (Provider, error) {
	var options []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.GCPCredentialsJSON) != "":
		options = append(options, option.WithCredentialsJSON([]byte(cfg.GCPCredentialsJSON)))
	case strings.TrimSpace(cfg.GCPCredentialsFile) != "":
		options = append(options, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}
	// emulators such as fake-gcs-server take no credentials
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		options = append(options, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gcs client")
	}
	return &gcsProvider{
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		root:   dirPrefix(cfg.Prefix),
		client: client,
	}, nil
}

func (p *gcsProvider) uri(key string) string {
	return "gs://" + p.name + "/" + ResolveKey(p.root, key)
}

func (p *gcsProvider) Objects(ctx context.Context) ([]ObjectInfo, error) {
	query := &storage.Query{Prefix: p.root}
	if err := query.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
		return nil, err
	}
	var objects []ObjectInfo
	it := p.bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return objects, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", p.uri(""))
		}
		objects = append(objects, ObjectInfo{
			Key:          relativeKey(p.root, attrs.Name),
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}
}

func (p *gcsProvider) Put(ctx context.Context, key string, body io.Reader, size int64) (ObjectInfo, error) {
	w := p.bucket.Object(ResolveKey(p.root, key)).NewWriter(ctx)
	w.ContentType = ContentType(key)
	if size < gcsChunkSize {
		w.ChunkSize = 0
	}
	written, err := io.Copy(w, body)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ObjectInfo{}, errors.Wrapf(err, "failed to upload %s", p.uri(key))
	}
	return ObjectInfo{Key: key, Size: written}, nil
}

func (p *gcsProvider) Remove(ctx context.Context, key string) error {
	err := p.bucket.Object(ResolveKey(p.root, key)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return errors.Wrapf(err, "failed to delete %s", p.uri(key))
}

func (p *gcsProvider) Close() error {
	return p.client.Close()
}
