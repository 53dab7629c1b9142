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

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// minioProvider writes to S3 compatible stores such as MinIO.
type minioProvider struct {
	bucket string
	root   string
	client *minio.Client
}

// minioEndpoint strips the scheme minio.New does not accept and reports
// whether TLS is used. Endpoints without a scheme use TLS.
func minioEndpoint(raw string) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		return rest, false
	}
	return strings.TrimPrefix(endpoint, "https://"), true
}

func newMinioProvider(cfg Config) (Provider, error) {
	endpoint, secure := minioEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minio client")
	}
	return &minioProvider{bucket: cfg.Bucket, root: dirPrefix(cfg.Prefix), client: client}, nil
}

func (p *minioProvider) uri(key string) string {
	return "minio://" + p.bucket + "/" + ResolveKey(p.root, key)
}

func (p *minioProvider) Objects(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	listing := p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: p.root, Recursive: true})
	for object := range listing {
		if object.Err != nil {
			return nil, errors.Wrapf(object.Err, "failed to list %s", p.uri(""))
		}
		objects = append(objects, ObjectInfo{
			Key:          relativeKey(p.root, object.Key),
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return objects, nil
}

func (p *minioProvider) Put(ctx context.Context, key string, body io.Reader, size int64) (ObjectInfo, error) {
	info, err := p.client.PutObject(ctx, p.bucket, ResolveKey(p.root, key), body, size,
		minio.PutObjectOptions{ContentType: ContentType(key)})
	if err != nil {
		return ObjectInfo{}, errors.Wrapf(err, "failed to upload %s", p.uri(key))
	}
	return ObjectInfo{Key: key, Size: info.Size, LastModified: info.LastModified}, nil
}

func (p *minioProvider) Remove(ctx context.Context, key string) error {
	err := p.client.RemoveObject(ctx, p.bucket, ResolveKey(p.root, key), minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "failed to delete %s", p.uri(key))
}

func (p *minioProvider) Close() error { return nil }
