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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

const defaultS3Region = "us-east-1"

// s3Provider writes output files below s3://<bucket>/<root>. Files smaller
// than one multipart chunk go out in a single PutObject.
type s3Provider struct {
	bucket   string
	root     string
	client   *s3.Client
	uploader *manager.Uploader
}

func newS3Provider(ctx context.Context, cfg Config) (Provider, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})
	return &s3Provider{
		bucket:   cfg.Bucket,
		root:     dirPrefix(cfg.Prefix),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// loadAWSConfig resolves the region and credentials. Static keys from the
// writer options win over the default chain.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}
	options := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" || cfg.SessionToken != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
		options = append(options, config.WithCredentialsProvider(static))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load aws config")
	}
	return awsCfg, nil
}

func (p *s3Provider) uri(key string) string {
	return "s3://" + p.bucket + "/" + ResolveKey(p.root, key)
}

func (p *s3Provider) Objects(ctx context.Context) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(p.bucket)}
	if p.root != "" {
		input.Prefix = aws.String(p.root)
	}
	var objects []ObjectInfo
	pages := s3.NewListObjectsV2Paginator(p.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", p.uri(""))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// folder placeholders created by consoles
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, ObjectInfo{
				Key:          relativeKey(p.root, key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func (p *s3Provider) Put(ctx context.Context, key string, body io.Reader, size int64) (ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(ResolveKey(p.root, key)),
		Body:        body,
		ContentType: aws.String(ContentType(key)),
	}
	var err error
	if size < manager.DefaultUploadPartSize {
		input.ContentLength = aws.Int64(size)
		_, err = p.client.PutObject(ctx, input)
	} else {
		_, err = p.uploader.Upload(ctx, input)
	}
	if err != nil {
		return ObjectInfo{}, errors.Wrapf(err, "failed to upload %s", p.uri(key))
	}
	return ObjectInfo{Key: key, Size: size}, nil
}

func (p *s3Provider) Remove(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(ResolveKey(p.root, key)),
	})
	return errors.Wrapf(err, "failed to delete %s", p.uri(key))
}

func (p *s3Provider) Close() error { return nil }
