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

package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML form of Config. Unset fields keep their current value.
type FileConfig struct {
	Session *SessionFileConfig `yaml:"session"`
	Logging *LoggingFileConfig `yaml:"logging"`
	Metrics *MetricsFileConfig `yaml:"metrics"`
}

type SessionFileConfig struct {
	AppName        *string           `yaml:"app_name"`
	Master         *string           `yaml:"master"`
	Namespace      *string           `yaml:"namespace"`
	Image          *string           `yaml:"image"`
	Executors      *int              `yaml:"executors"`
	Kubeconfig     *string           `yaml:"kubeconfig"`
	PropertiesFile *string           `yaml:"properties_file"`
	Conf           map[string]string `yaml:"conf"`
}

type LoggingFileConfig struct {
	Format *string `yaml:"format"`
	Level  *string `yaml:"level"`
}

type MetricsFileConfig struct {
	Path *string `yaml:"path"`
}

// LoadFile reads a YAML config file. An empty path returns nil.
func LoadFile(path string) (*FileConfig, error) {
	expanded := expandPath(path)
	if expanded == "" {
		return nil, nil
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return &cfg, nil
}

// ApplyFile fills c from fileCfg. Settings whose environment variable is set
// keep the environment value, and flags bound afterwards override both.
func (c *Config) ApplyFile(fileCfg *FileConfig) {
	if fileCfg == nil {
		return
	}
	if s := fileCfg.Session; s != nil {
		fileString(&c.AppName, s.AppName, EnvAppName)
		fileString(&c.Master, s.Master, EnvMaster)
		fileString(&c.Namespace, s.Namespace, EnvNamespace)
		fileString(&c.Image, s.Image, EnvImage)
		fileString(&c.Kubeconfig, s.Kubeconfig, EnvKubeconfig)
		fileString(&c.PropertiesFile, s.PropertiesFile, EnvPropertiesFile)
		if s.Executors != nil && !envSet(EnvExecutors) {
			c.Executors = *s.Executors
		}
		c.fileConf = sortedPairs(s.Conf)
	}
	if l := fileCfg.Logging; l != nil {
		fileString(&c.LogLevel, l.Level, EnvLogLevel)
		fileString(&c.LogFormat, l.Format, EnvLogFormat)
	}
	if m := fileCfg.Metrics; m != nil {
		fileString(&c.MetricsPath, m.Path, EnvMetricsPath)
	}
}

func fileString(dst *string, value *string, envKey string) {
	if value != nil && !envSet(envKey) {
		*dst = strings.TrimSpace(*value)
	}
}

func envSet(key string) bool {
	return strings.TrimSpace(os.Getenv(key)) != ""
}
