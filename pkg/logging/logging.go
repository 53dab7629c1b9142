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

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvLogAddSource = "LOG_ADD_SOURCE"

	FormatJSON    = "json"
	FormatConsole = "console"

	DefaultLogLevel  = zapcore.InfoLevel
	DefaultLogFormat = FormatJSON

	redacted = "[REDACTED]"
)

// Config holds the logging configuration
type Config struct {
	Level     zapcore.Level
	Format    string
	AddSource bool

	// Output defaults to stderr so stdout stays free for command output.
	Output io.Writer
}

// sensitiveKeys contains field names that should be redacted
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"apikey",
	"api_key",
	"credential",
	"accesskey",
	"access_key",
}

// LoadConfig loads logging configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Level = parseLevel(level)
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		cfg.Format = normalizeFormat(format)
	}
	if addSource := os.Getenv(EnvLogAddSource); addSource != "" {
		cfg.AddSource = strings.EqualFold(addSource, "true")
	}
	if cfg.Level == zapcore.DebugLevel && os.Getenv(EnvLogAddSource) == "" {
		cfg.AddSource = true
	}
	return cfg
}

// LoadConfigWithFlags loads configuration with command-line flag overrides.
// Flags take precedence over environment variables.
func LoadConfigWithFlags(levelFlag, formatFlag string, addSourceFlag *bool) Config {
	cfg := LoadConfig()

	if levelFlag != "" {
		cfg.Level = parseLevel(levelFlag)
	}
	if formatFlag != "" {
		cfg.Format = normalizeFormat(formatFlag)
	}
	if addSourceFlag != nil {
		cfg.AddSource = *addSourceFlag
	}
	if cfg.Level == zapcore.DebugLevel && addSourceFlag == nil && os.Getenv(EnvLogAddSource) == "" {
		cfg.AddSource = true
	}
	return cfg
}

func normalizeFormat(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case FormatConsole, "text":
		return FormatConsole
	default:
		return FormatJSON
	}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFromString converts a string to a zap level (exported for use in flags)
func LevelFromString(s string) zapcore.Level {
	return parseLevel(s)
}

// NewZapLogger builds a zap logger that redacts sensitive fields.
func NewZapLogger(cfg Config) *zap.Logger {
	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	if cfg.Format == FormatConsole {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(cfg.Level))

	var opts []zap.Option
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(&redactingCore{Core: core}, opts...)
}

// NewLogger returns a logr.Logger backed by zap.
func NewLogger(cfg Config) logr.Logger {
	return zapr.NewLogger(NewZapLogger(cfg))
}

// SetupLogger builds the logger and installs it as the controller-runtime
// logger, so log.FromContext falls back to it.
func SetupLogger(cfg Config) logr.Logger {
	logger := NewLogger(cfg)
	ctrllog.SetLogger(logger)
	return logger
}

// SetupLoggerWithAttrs is SetupLogger with common attributes attached.
func SetupLoggerWithAttrs(cfg Config, component, version string) logr.Logger {
	logger := NewLogger(cfg).WithValues("component", component, "version", version)
	ctrllog.SetLogger(logger)
	return logger
}

// IsSensitiveKey reports whether values logged under key are replaced.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}

// redactingCore replaces the values of sensitive fields before encoding.
type redactingCore struct {
	zapcore.Core
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if !IsSensitiveKey(f.Key) {
			continue
		}
		if out == nil {
			out = make([]zapcore.Field, len(fields))
			copy(out, fields)
		}
		out[i] = zap.String(f.Key, redacted)
	}
	if out == nil {
		return fields
	}
	return out
}
