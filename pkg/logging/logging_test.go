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

package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/FelipeFurlaneto/dataplatform/pkg/logging"
)

const (
	envLogLevel     = "LOG_LEVEL"
	envLogFormat    = "LOG_FORMAT"
	envLogAddSource = "LOG_ADD_SOURCE"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name           string
		envVars        map[string]string
		expectedLevel  zapcore.Level
		expectedFormat string
		expectedSource bool
	}{
		{
			name:           "default values",
			envVars:        map[string]string{},
			expectedLevel:  zapcore.InfoLevel,
			expectedFormat: "json",
			expectedSource: false,
		},
		{
			name: "debug level with auto source",
			envVars: map[string]string{
				envLogLevel: "debug",
			},
			expectedLevel:  zapcore.DebugLevel,
			expectedFormat: "json",
			expectedSource: true,
		},
		{
			name: "warn level with console format",
			envVars: map[string]string{
				envLogLevel:  "warn",
				envLogFormat: "console",
			},
			expectedLevel:  zapcore.WarnLevel,
			expectedFormat: "console",
			expectedSource: false,
		},
		{
			name: "text is an alias for console",
			envVars: map[string]string{
				envLogFormat: "TEXT",
			},
			expectedLevel:  zapcore.InfoLevel,
			expectedFormat: "console",
			expectedSource: false,
		},
		{
			name: "error level with explicit source",
			envVars: map[string]string{
				envLogLevel:     "error",
				envLogAddSource: "true",
			},
			expectedLevel:  zapcore.ErrorLevel,
			expectedFormat: "json",
			expectedSource: true,
		},
		{
			name: "debug level with source disabled",
			envVars: map[string]string{
				envLogLevel:     "debug",
				envLogAddSource: "false",
			},
			expectedLevel:  zapcore.DebugLevel,
			expectedFormat: "json",
			expectedSource: false,
		},
		{
			name: "invalid values fall back to defaults",
			envVars: map[string]string{
				envLogLevel:  "invalid",
				envLogFormat: "xml",
			},
			expectedLevel:  zapcore.InfoLevel,
			expectedFormat: "json",
			expectedSource: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := logging.LoadConfig()

			assert.Equal(t, tt.expectedLevel, cfg.Level)
			assert.Equal(t, tt.expectedFormat, cfg.Format)
			assert.Equal(t, tt.expectedSource, cfg.AddSource)
		})
	}
}

func TestLoadConfigWithFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv(envLogLevel, "info")
	t.Setenv(envLogFormat, "json")

	cfg := logging.LoadConfigWithFlags("debug", "console", boolPtr(true))
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.AddSource)

	cfg = logging.LoadConfigWithFlags("", "", nil)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.False(t, cfg.AddSource)

	cfg = logging.LoadConfigWithFlags("debug", "", boolPtr(false))
	assert.False(t, cfg.AddSource)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"Warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, logging.LevelFromString(in), in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: zapcore.InfoLevel, Format: logging.FormatJSON, Output: &buf})

	logger.V(1).Info("debug message")
	logger.Info("info message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.Contains(t, output, "info message")

	buf.Reset()
	logger = logging.NewLogger(logging.Config{Level: zapcore.DebugLevel, Format: logging.FormatJSON, Output: &buf})
	logger.V(1).Info("debug message")
	assert.Contains(t, buf.String(), "debug message")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: zapcore.InfoLevel, Format: logging.FormatJSON, Output: &buf})
	logger.WithName("session").Info("Starting session", "appName", "EnterpriseLocal")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Starting session", entry["msg"])
	assert.Equal(t, "session", entry["logger"])
	assert.Equal(t, "EnterpriseLocal", entry["appName"])
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: zapcore.InfoLevel, Format: logging.FormatConsole, Output: &buf})
	logger.Info("hello")
	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "hello")
	assert.False(t, strings.HasPrefix(line, "{"))
}

func TestSensitiveDataRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: zapcore.InfoLevel, Format: logging.FormatJSON, Output: &buf})

	logger.WithValues("api_key", "k-123").Info("test",
		"password", "secret123",
		"spark.kubernetes.authenticate.oauthToken", "abc123",
		"username", "admin")

	output := buf.String()
	assert.NotContains(t, output, "secret123", "password should be redacted")
	assert.NotContains(t, output, "abc123", "token should be redacted")
	assert.NotContains(t, output, "k-123", "values attached with WithValues should be redacted")
	assert.Contains(t, output, "[REDACTED]")
	assert.Contains(t, output, "admin", "non-sensitive data should not be redacted")
}

func TestIsSensitiveKey(t *testing.T) {
	for _, key := range []string{"password", "DB_PASSWORD", "token", "secretKey", "apikey", "api_key", "credentials", "s3_access_key"} {
		assert.True(t, logging.IsSensitiveKey(key), key)
	}
	for _, key := range []string{"username", "namespace", "appId"} {
		assert.False(t, logging.IsSensitiveKey(key), key)
	}
}

func TestSetupLoggerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.SetupLoggerWithAttrs(logging.Config{Level: zapcore.InfoLevel, Output: &buf}, "sparkctl", "dev")
	logger.Info("ready")
	assert.Contains(t, buf.String(), `"component":"sparkctl"`)
	assert.Contains(t, buf.String(), `"version":"dev"`)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envLogLevel, envLogFormat, envLogAddSource} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
