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
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/FelipeFurlaneto/dataplatform/pkg/spark/conf"
)

const (
	EnvAppName        = "SPARK_APP_NAME"
	EnvMaster         = "SPARK_MASTER"
	EnvNamespace      = "SPARK_NAMESPACE"
	EnvImage          = "SPARK_IMAGE"
	EnvExecutors      = "SPARK_EXECUTOR_INSTANCES"
	EnvKubeconfig     = "KUBECONFIG"
	EnvPropertiesFile = "SPARK_PROPERTIES_FILE"
	EnvConfigFile     = "SPARKCTL_CONFIG"
	EnvEnvFile        = "SPARKCTL_ENV_FILE"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvMetricsPath    = "SPARK_METRICS_PATH"

	DefaultAppName   = "EnterpriseLocal"
	DefaultMaster    = "local[*]"
	DefaultNamespace = "spark"
	DefaultImage     = "apache/spark:3.5.1"
)

// ErrInvalidConfPair is returned for --conf values that are not key=value.
var ErrInvalidConfPair = errors.New("conf entries must be key=value")

// Config controls how sparkctl builds its session.
type Config struct {
	AppName        string
	Master         string
	Namespace      string
	Image          string
	Executors      int
	Kubeconfig     string
	Conf           []string
	PropertiesFile string
	ConfigFile     string
	EnvFile        string
	LogLevel       string
	LogFormat      string
	MetricsPath    string

	// fileConf holds conf entries read from the YAML config file.
	fileConf []conf.KeyValue
}

// New returns a Config with defaults taken from the environment.
func New() *Config {
	return &Config{
		AppName:        envOrDefault(EnvAppName, DefaultAppName),
		Master:         envOrDefault(EnvMaster, DefaultMaster),
		Namespace:      envOrDefault(EnvNamespace, DefaultNamespace),
		Image:          envOrDefault(EnvImage, DefaultImage),
		Executors:      envOrDefaultInt(EnvExecutors, 0),
		Kubeconfig:     envOrDefault(EnvKubeconfig, ""),
		PropertiesFile: envOrDefault(EnvPropertiesFile, ""),
		ConfigFile:     envOrDefault(EnvConfigFile, ""),
		EnvFile:        envOrDefault(EnvEnvFile, ""),
		LogLevel:       envOrDefault(EnvLogLevel, "info"),
		LogFormat:      envOrDefault(EnvLogFormat, "console"),
		MetricsPath:    envOrDefault(EnvMetricsPath, ""),
	}
}

// BindFlags registers the session flags on fs, using the current values as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.AppName, "app-name", c.AppName, "application name (spark.app.name)")
	fs.StringVar(&c.Master, "master", c.Master, "cluster master: local, local[N], local[*] or k8s://https://host:port")
	fs.StringVar(&c.Namespace, "namespace", c.Namespace, "namespace for executor pods")
	fs.StringVar(&c.Image, "image", c.Image, "executor container image")
	fs.IntVar(&c.Executors, "executors", c.Executors, "number of executor pods (0 keeps spark.executor.instances)")
	fs.StringVar(&c.Kubeconfig, "kubeconfig", c.Kubeconfig, "path to kubeconfig")
	fs.StringArrayVar(&c.Conf, "conf", c.Conf, "spark option as key=value, may be repeated")
	fs.StringVar(&c.PropertiesFile, "properties-file", c.PropertiesFile, "spark-defaults.conf style properties file")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, ".env file to load before reading the environment")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: json|console")
	fs.StringVar(&c.MetricsPath, "metrics-path", c.MetricsPath, "write prometheus metrics to this file on exit")
}

// SparkOptions returns the spark options this config sets, in the order
// they are applied: the named settings, the config file conf and then
// every --conf entry.
func (c *Config) SparkOptions() ([]conf.KeyValue, error) {
	var out []conf.KeyValue
	add := func(key, value string) {
		if value != "" {
			out = append(out, conf.KeyValue{Key: key, Value: value})
		}
	}
	add(conf.AppName, c.AppName)
	add(conf.Master, c.Master)
	add(conf.KubernetesNamespace, c.Namespace)
	add(conf.KubernetesContainerImage, c.Image)
	if c.Executors > 0 {
		add(conf.ExecutorInstances, strconv.Itoa(c.Executors))
	}
	out = append(out, c.fileConf...)

	pairs, err := ParseConfPairs(c.Conf)
	if err != nil {
		return nil, err
	}
	return append(out, pairs...), nil
}

// ParseConfPairs splits key=value entries. Only the first '=' separates.
func ParseConfPairs(pairs []string) ([]conf.KeyValue, error) {
	out := make([]conf.KeyValue, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Wrapf(ErrInvalidConfPair, "got %q", pair)
		}
		out = append(out, conf.KeyValue{Key: key, Value: value})
	}
	return out, nil
}

// ExportKubeconfig makes an explicit --kubeconfig visible to the kubeconfig loader.
func (c *Config) ExportKubeconfig() error {
	if c.Kubeconfig == "" {
		return nil
	}
	return os.Setenv(EnvKubeconfig, expandPath(c.Kubeconfig))
}

// LoadEnvFile loads path, or when path is empty the first .env file found
// walking up from the working directory. Variables already set win.
func LoadEnvFile(path string) error {
	if path != "" {
		return errors.Wrapf(godotenv.Load(expandPath(path)), "failed to load %s", path)
	}

	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			return godotenv.Load(envFile)
		}
		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			return nil
		}
		dir = parentDir
	}
}

// DetectFlagValue finds --name value or --name=value in args before flags
// are parsed, falling back to envValue.
func DetectFlagValue(args []string, name, envValue string) string {
	value := strings.TrimSpace(envValue)
	long := "--" + name
	for i := 0; i < len(args); i++ {
		arg := strings.TrimSpace(args[i])
		if arg == long {
			if i+1 < len(args) {
				value = strings.TrimSpace(args[i+1])
			}
			continue
		}
		if v, ok := strings.CutPrefix(arg, long+"="); ok {
			value = strings.TrimSpace(v)
		}
	}
	return value
}

func sortedPairs(values map[string]string) []conf.KeyValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]conf.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, conf.KeyValue{Key: k, Value: values[k]})
	}
	return out
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return os.ExpandEnv(path)
}
