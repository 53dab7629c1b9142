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

// Package objectstore uploads DataFrame output to local disk or a bucket.
package objectstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	ProviderS3    = "s3"
	ProviderMinio = "minio"
	ProviderGCS   = "gcs"
	ProviderAzure = "azure"
	ProviderLocal = "local"
)

// Config describes how to connect to an object store provider.
type Config struct {
	Provider           string
	Bucket             string
	Prefix             string
	Region             string
	Endpoint           string
	AccessKey          string
	SecretKey          string
	SessionToken       string
	S3PathStyle        bool
	GCPCredentialsFile string
	GCPCredentialsJSON string
	AzureAccount       string
	AzureKey           string
	AzureEndpoint      string
	AzureSASToken      string
}

// ObjectInfo describes one file of an output directory. Key is relative to
// the directory.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Provider stores the files of one output directory, rooted at Config.Prefix.
type Provider interface {
	// Objects lists every file under the directory.
	Objects(ctx context.Context) ([]ObjectInfo, error)
	// Put stores size bytes read from body as key. The content type is
	// derived from the key.
	Put(ctx context.Context, key string, body io.Reader, size int64) (ObjectInfo, error)
	// Remove deletes key. A missing key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// NewProvider creates a provider client based on config.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	provider := NormalizeProvider(cfg.Provider)
	if provider == "" {
		return nil, errors.New("objectstore provider is required")
	}
	if cfg.Bucket == "" && provider != ProviderLocal {
		return nil, errors.New("objectstore bucket is required")
	}
	cfg.Provider = provider
	switch provider {
	case ProviderS3:
		return newS3Provider(ctx, cfg)
	case ProviderMinio:
		return newMinioProvider(cfg)
	case ProviderGCS:
		return newGCSProvider(ctx, cfg)
	case ProviderAzure:
		return newAzureProvider(cfg)
	case ProviderLocal:
		return newLocalProvider(cfg)
	default:
		return nil, errors.Errorf("unsupported objectstore provider: %s", cfg.Provider)
	}
}

// Open parses uri, applies environment credentials and options, and returns
// the matching provider.
func Open(ctx context.Context, uri string, options map[string]string) (Provider, Config, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, Config{}, err
	}
	cfg.ApplyEnv()
	if err := cfg.ApplyOptions(options); err != nil {
		return nil, Config{}, err
	}
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, Config{}, errors.Wrapf(err, "failed to open %s", uri)
	}
	return provider, cfg, nil
}

// NormalizeProvider maps known aliases to provider names.
func NormalizeProvider(value string) string {
	provider := strings.ToLower(strings.TrimSpace(value))
	switch provider {
	case "aws", "s3", "s3a":
		return ProviderS3
	case "minio":
		return ProviderMinio
	case "gcp", "gcs", "gs":
		return ProviderGCS
	case "azure", "blob", "wasbs", "abfss":
		return ProviderAzure
	case "local", "file":
		return ProviderLocal
	default:
		return provider
	}
}

// ParseURI turns an output location into a Config. Paths without a scheme
// and file:// URIs are local directories.
func ParseURI(uri string) (Config, error) {
	raw := strings.TrimSpace(uri)
	if raw == "" {
		return Config{}, errors.New("output path is required")
	}
	if !strings.Contains(raw, "://") {
		return Config{Provider: ProviderLocal, Prefix: filepath.Clean(raw)}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid output path %q", uri)
	}
	provider := NormalizeProvider(u.Scheme)
	prefix := strings.Trim(u.Path, "/")
	switch provider {
	case ProviderLocal:
		return Config{Provider: ProviderLocal, Prefix: filepath.Clean(filepath.FromSlash(u.Path))}, nil
	case ProviderS3, ProviderMinio, ProviderGCS:
		if u.Host == "" {
			return Config{}, errors.Errorf("missing bucket in %q", uri)
		}
		return Config{Provider: provider, Bucket: u.Host, Prefix: prefix}, nil
	case ProviderAzure:
		// <container>@<account>.<blob|dfs>.core.windows.net
		container := u.User.Username()
		host := u.Hostname()
		if container == "" || host == "" {
			return Config{}, errors.Errorf("azure paths must look like %s://container@account.blob.core.windows.net/path", u.Scheme)
		}
		account := strings.SplitN(host, ".", 2)[0]
		endpoint := "https://" + strings.Replace(host, ".dfs.", ".blob.", 1)
		return Config{Provider: provider, Bucket: container, Prefix: prefix, AzureAccount: account, AzureEndpoint: endpoint}, nil
	}
	return Config{}, errors.Errorf("unsupported output scheme %q", u.Scheme)
}

// ApplyEnv fills credentials the provider's SDK does not discover on its own.
func (c *Config) ApplyEnv() {
	setIfEmpty := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	switch c.Provider {
	case ProviderS3:
		setIfEmpty(&c.Region, "AWS_REGION", "AWS_DEFAULT_REGION")
		setIfEmpty(&c.Endpoint, "AWS_ENDPOINT_URL_S3")
	case ProviderMinio:
		setIfEmpty(&c.Endpoint, "MINIO_ENDPOINT")
		setIfEmpty(&c.AccessKey, "MINIO_ACCESS_KEY", "MINIO_ROOT_USER")
		setIfEmpty(&c.SecretKey, "MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD")
	case ProviderGCS:
		setIfEmpty(&c.GCPCredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	case ProviderAzure:
		setIfEmpty(&c.AzureKey, "AZURE_STORAGE_KEY")
		setIfEmpty(&c.AzureSASToken, "AZURE_STORAGE_SAS_TOKEN")
	}
}

// ApplyOptions overrides connection settings with writer options.
func (c *Config) ApplyOptions(options map[string]string) error {
	for k, v := range options {
		switch strings.ToLower(k) {
		case "endpoint":
			c.Endpoint = v
			c.AzureEndpoint = firstNonEmpty(v, c.AzureEndpoint)
		case "region":
			c.Region = v
		case "access_key", "accesskey":
			c.AccessKey = v
		case "secret_key", "secretkey":
			c.SecretKey = v
		case "session_token":
			c.SessionToken = v
		case "path_style":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.Wrapf(err, "invalid path_style %q", v)
			}
			c.S3PathStyle = b
		case "gcp_credentials_file":
			c.GCPCredentialsFile = v
		case "gcp_credentials_json":
			c.GCPCredentialsJSON = v
		case "azure_key":
			c.AzureKey = v
		case "azure_sas_token":
			c.AzureSASToken = v
		}
	}
	return nil
}

// ResolveKey joins a base prefix with a key without introducing double slashes.
func ResolveKey(prefix string, key string) string {
	cleanPrefix := strings.TrimPrefix(prefix, "/")
	cleanKey := strings.TrimPrefix(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	if strings.HasSuffix(cleanPrefix, "/") {
		return cleanPrefix + cleanKey
	}
	return cleanPrefix + "/" + cleanKey
}

// dirPrefix returns prefix with a trailing slash so listings stay inside it.
func dirPrefix(prefix string) string {
	p := strings.Trim(prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// relativeKey strips the provider prefix from a remote key.
func relativeKey(prefix, remoteKey string) string {
	return strings.TrimPrefix(remoteKey, dirPrefix(prefix))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
