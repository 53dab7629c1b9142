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
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/pkg/errors"
)

// azureBlockSize is the staged block size for part files.
const azureBlockSize = 4 << 20

type azureProvider struct {
	container string
	root      string
	client    *container.Client
}

func newAzureProvider(cfg Config) (Provider, error) {
	containerURL, err := buildAzureContainerURL(cfg)
	if err != nil {
		return nil, err
	}
	client, err := newAzureContainerClient(cfg, containerURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create azure container client")
	}
	return &azureProvider{container: cfg.Bucket, root: dirPrefix(cfg.Prefix), client: client}, nil
}

// newAzureContainerClient picks the credential: a SAS token in the URL, a
// shared account key, or the default Azure identity chain.
func newAzureContainerClient(cfg Config, containerURL string) (*container.Client, error) {
	options := &container.ClientOptions{ClientOptions: azcore.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: 3, RetryDelay: 500 * time.Millisecond},
	}}
	switch {
	case strings.TrimSpace(cfg.AzureSASToken) != "":
		return container.NewClientWithNoCredential(containerURL, options)
	case strings.TrimSpace(cfg.AzureKey) != "":
		if strings.TrimSpace(cfg.AzureAccount) == "" {
			return nil, errors.New("azure account name is required for shared key auth")
		}
		credential, err := azblob.NewSharedKeyCredential(cfg.AzureAccount, cfg.AzureKey)
		if err != nil {
			return nil, err
		}
		return container.NewClientWithSharedKeyCredential(containerURL, credential, options)
	}
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return container.NewClient(containerURL, credential, options)
}

func buildAzureContainerURL(cfg Config) (string, error) {
	serviceURL := strings.TrimRight(strings.TrimSpace(cfg.AzureEndpoint), "/")
	if serviceURL == "" {
		if strings.TrimSpace(cfg.AzureAccount) == "" {
			return "", errors.New("azure endpoint or account name is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccount)
	}
	containerURL := serviceURL + "/" + cfg.Bucket
	if token := strings.TrimPrefix(strings.TrimSpace(cfg.AzureSASToken), "?"); token != "" {
		containerURL += "?" + token
	}
	return containerURL, nil
}

func (p *azureProvider) uri(key string) string {
	return "azure://" + p.container + "/" + ResolveKey(p.root, key)
}

func (p *azureProvider) Objects(ctx context.Context) ([]ObjectInfo, error) {
	options := &container.ListBlobsFlatOptions{}
	if p.root != "" {
		options.Prefix = &p.root
	}
	var objects []ObjectInfo
	pager := p.client.NewListBlobsFlatPager(options)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", p.uri(""))
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			info := ObjectInfo{Key: relativeKey(p.root, *item.Name)}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					info.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					info.LastModified = *props.LastModified
				}
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (p *azureProvider) Put(ctx context.Context, key string, body io.Reader, size int64) (ObjectInfo, error) {
	contentType := ContentType(key)
	_, err := p.client.NewBlockBlobClient(ResolveKey(p.root, key)).UploadStream(ctx, body, &blockblob.UploadStreamOptions{
		BlockSize:   azureBlockSize,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return ObjectInfo{}, errors.Wrapf(err, "failed to upload %s", p.uri(key))
	}
	return ObjectInfo{Key: key, Size: size}, nil
}

func (p *azureProvider) Remove(ctx context.Context, key string) error {
	_, err := p.client.NewBlobClient(ResolveKey(p.root, key)).Delete(ctx, nil)
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return errors.Wrapf(err, "failed to delete %s", p.uri(key))
}

func (p *azureProvider) Close() error { return nil }
