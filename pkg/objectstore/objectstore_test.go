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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    Config
		wantErr bool
	}{
		{name: "plain path", uri: "/tmp/out/range", want: Config{Provider: ProviderLocal, Prefix: "/tmp/out/range"}},
		{name: "relative path", uri: "out/range/", want: Config{Provider: ProviderLocal, Prefix: "out/range"}},
		{name: "file uri", uri: "file:///data/out", want: Config{Provider: ProviderLocal, Prefix: "/data/out"}},
		{name: "s3", uri: "s3://bucket/warehouse/range/", want: Config{Provider: ProviderS3, Bucket: "bucket", Prefix: "warehouse/range"}},
		{name: "s3a", uri: "s3a://bucket/range", want: Config{Provider: ProviderS3, Bucket: "bucket", Prefix: "range"}},
		{name: "minio", uri: "minio://spark/out", want: Config{Provider: ProviderMinio, Bucket: "spark", Prefix: "out"}},
		{name: "gcs", uri: "gs://bucket", want: Config{Provider: ProviderGCS, Bucket: "bucket"}},
		{
			name: "wasbs",
			uri:  "wasbs://data@acct.blob.core.windows.net/range",
			want: Config{Provider: ProviderAzure, Bucket: "data", Prefix: "range", AzureAccount: "acct", AzureEndpoint: "https://acct.blob.core.windows.net"},
		},
		{
			name: "abfss",
			uri:  "abfss://data@acct.dfs.core.windows.net/a/b",
			want: Config{Provider: ProviderAzure, Bucket: "data", Prefix: "a/b", AzureAccount: "acct", AzureEndpoint: "https://acct.blob.core.windows.net"},
		},
		{name: "empty", uri: " ", wantErr: true},
		{name: "missing bucket", uri: "s3:///path", wantErr: true},
		{name: "azure without container", uri: "wasbs://acct.blob.core.windows.net/x", wantErr: true},
		{name: "unknown scheme", uri: "hdfs://nn/path", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyEnvAndOptions(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "http://minio:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")

	cfg := Config{Provider: ProviderMinio, Bucket: "spark"}
	cfg.ApplyEnv()
	assert.Equal(t, "http://minio:9000", cfg.Endpoint)
	assert.Equal(t, "minio", cfg.AccessKey)
	assert.Equal(t, "minio123", cfg.SecretKey)

	require.NoError(t, cfg.ApplyOptions(map[string]string{
		"endpoint":   "https://minio.local",
		"region":     "eu-west-1",
		"path_style": "true",
	}))
	assert.Equal(t, "https://minio.local", cfg.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.True(t, cfg.S3PathStyle)

	assert.Error(t, cfg.ApplyOptions(map[string]string{"path_style": "maybe"}))
}

func TestResolveKey(t *testing.T) {
	assert.Equal(t, "a/b", ResolveKey("a", "b"))
	assert.Equal(t, "a/b", ResolveKey("/a/", "/b"))
	assert.Equal(t, "b", ResolveKey("", "b"))
	assert.Equal(t, "a", ResolveKey("a", ""))
	assert.Equal(t, "a/", dirPrefix("/a/"))
	assert.Equal(t, "", dirPrefix(""))
	assert.Equal(t, "part-0", relativeKey("out/range", "out/range/part-0"))
}

func TestNormalizeProvider(t *testing.T) {
	assert.Equal(t, ProviderS3, NormalizeProvider("AWS"))
	assert.Equal(t, ProviderS3, NormalizeProvider("s3a"))
	assert.Equal(t, ProviderGCS, NormalizeProvider("gs"))
	assert.Equal(t, ProviderAzure, NormalizeProvider("abfss"))
	assert.Equal(t, ProviderMinio, NormalizeProvider("minio"))
	assert.Equal(t, ProviderLocal, NormalizeProvider("file"))
	assert.Equal(t, "hdfs", NormalizeProvider("hdfs"))
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "out")
	provider, cfg, err := Open(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, cfg.Provider)
	defer provider.Close()

	objects, err := provider.Objects(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)

	info, err := provider.Put(ctx, "part-00000.csv", strings.NewReader("number\n0\n"), 9)
	require.NoError(t, err)
	assert.Equal(t, ObjectInfo{Key: "part-00000.csv", Size: 9}, info)
	_, err = provider.Put(ctx, "nested/_SUCCESS", strings.NewReader(""), 0)
	require.NoError(t, err)

	objects, err = provider.Objects(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	assert.ElementsMatch(t, []string{"part-00000.csv", "nested/_SUCCESS"}, keys)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
	}

	require.NoError(t, provider.Remove(ctx, "part-00000.csv"))
	require.NoError(t, provider.Remove(ctx, "part-00000.csv"))
	_, err = os.Stat(filepath.Join(root, "part-00000.csv"))
	assert.True(t, os.IsNotExist(err))
}

// memoryProvider records calls so Output ordering can be checked.
type memoryProvider struct {
	files   map[string][]byte
	removed []string
	closed  bool
}

func newMemoryProvider(keys ...string) *memoryProvider {
	p := &memoryProvider{files: map[string][]byte{}}
	for _, k := range keys {
		p.files[k] = []byte(k)
	}
	return p
}

func (p *memoryProvider) Objects(context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for k, v := range p.files {
		objects = append(objects, ObjectInfo{Key: k, Size: int64(len(v))})
	}
	return objects, nil
}

func (p *memoryProvider) Put(_ context.Context, key string, body io.Reader, _ int64) (ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	p.files[key] = data
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (p *memoryProvider) Remove(_ context.Context, key string) error {
	delete(p.files, key)
	p.removed = append(p.removed, key)
	return nil
}

func (p *memoryProvider) Close() error {
	p.closed = true
	return nil
}

func TestOutputClearRemovesMarkerFirst(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider("part-00001-a-c000.csv", "_SUCCESS", "2024/part-00000-a-c000.csv")
	out := NewOutput(provider, "s3://bucket/table/")

	committed, err := out.Committed(ctx)
	require.NoError(t, err)
	assert.True(t, committed)

	require.NoError(t, out.Clear(ctx))
	assert.Equal(t, []string{"_SUCCESS", "2024/part-00000-a-c000.csv", "part-00001-a-c000.csv"}, provider.removed)
	assert.Empty(t, provider.files)

	committed, err = out.Committed(ctx)
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestOutputPutFileAndCommit(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	out := NewOutput(provider, "gs://bucket/table")

	src := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"number":0}`+"\n"), 0o644))

	key := PartKey(0, "1b4e28ba", "json")
	assert.Equal(t, "part-00000-1b4e28ba-c000.json", key)
	info, err := out.PutFile(ctx, key, src)
	require.NoError(t, err)
	assert.Equal(t, int64(13), info.Size)

	committed, err := out.Committed(ctx)
	require.NoError(t, err)
	assert.False(t, committed)

	require.NoError(t, out.Commit(ctx))
	files, err := out.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, ObjectInfo{Key: SuccessMarker}, files[0])
	assert.Equal(t, key, files[1].Key)

	_, err = out.PutFile(ctx, "part-00001.json", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	require.NoError(t, out.Close())
	assert.True(t, provider.closed)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: PartKey(0, "x", "snappy.parquet"), want: "application/vnd.apache.parquet"},
		{key: PartKey(3, "x", "csv"), want: "text/csv"},
		{key: PartKey(0, "x", "json"), want: "application/x-ndjson"},
		{key: SuccessMarker, want: "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentType(tt.key), tt.key)
	}
}

func TestMinioEndpoint(t *testing.T) {
	endpoint, secure := minioEndpoint("http://localhost:9000")
	assert.Equal(t, "localhost:9000", endpoint)
	assert.False(t, secure)

	endpoint, secure = minioEndpoint(" https://play.min.io ")
	assert.Equal(t, "play.min.io", endpoint)
	assert.True(t, secure)

	endpoint, secure = minioEndpoint("minio.local:9000")
	assert.Equal(t, "minio.local:9000", endpoint)
	assert.True(t, secure)
}

func TestNewProviderValidation(t *testing.T) {
	ctx := context.Background()
	_, err := NewProvider(ctx, Config{})
	assert.Error(t, err)
	_, err = NewProvider(ctx, Config{Provider: "s3"})
	assert.Error(t, err)
	_, err = NewProvider(ctx, Config{Provider: "hdfs", Bucket: "b"})
	assert.Error(t, err)
	_, err = NewProvider(ctx, Config{Provider: "minio", Bucket: "b"})
	assert.Error(t, err)
}

func TestNewCloudProvidersOffline(t *testing.T) {
	ctx := context.Background()

	s3p, err := NewProvider(ctx, Config{Provider: "s3", Bucket: "b", AccessKey: "a", SecretKey: "s", Endpoint: "http://localhost:9000", S3PathStyle: true})
	require.NoError(t, err)
	assert.IsType(t, &s3Provider{}, s3p)

	mp, err := NewProvider(ctx, Config{Provider: "minio", Bucket: "b", Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.IsType(t, &minioProvider{}, mp)

	ap, err := NewProvider(ctx, Config{Provider: "azure", Bucket: "c", AzureAccount: "acct", AzureKey: "c2VjcmV0"})
	require.NoError(t, err)
	assert.IsType(t, &azureProvider{}, ap)

	url, err := buildAzureContainerURL(Config{Bucket: "c", AzureAccount: "acct", AzureSASToken: "?sv=1"})
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/c?sv=1", url)
}
