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

package conf

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultsFileName is the file read from the spark conf directory.
	DefaultsFileName = "spark-defaults.conf"

	EnvSparkConfDir = "SPARK_CONF_DIR"
	EnvSparkHome    = "SPARK_HOME"
)

// DefaultsPath returns the spark-defaults.conf location, or "" when neither
// SPARK_CONF_DIR nor SPARK_HOME points at an existing file.
func DefaultsPath() string {
	var candidates []string
	if dir := os.Getenv(EnvSparkConfDir); dir != "" {
		candidates = append(candidates, filepath.Join(dir, DefaultsFileName))
	}
	if home := os.Getenv(EnvSparkHome); home != "" {
		candidates = append(candidates, filepath.Join(home, "conf", DefaultsFileName))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadDefaults reads a properties file in spark-defaults.conf format.
func LoadDefaults(path string) ([]KeyValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	entries, err := ParseDefaults(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return entries, nil
}

// ParseDefaults parses "key value", "key=value" or "key: value" lines.
// Blank lines and lines starting with '#' or '!' are skipped. A trailing
// backslash continues the value on the next line.
func ParseDefaults(r io.Reader) ([]KeyValue, error) {
	var entries []KeyValue
	scanner := bufio.NewScanner(r)
	var pending string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if pending == "" && (line == "" || line[0] == '#' || line[0] == '!') {
			continue
		}
		if strings.HasSuffix(line, `\`) {
			pending += strings.TrimSuffix(line, `\`)
			continue
		}
		line = pending + line
		pending = ""

		key, value := splitProperty(line)
		if key == "" {
			return nil, errors.Errorf("line %d: missing key", lineNo)
		}
		entries = append(entries, KeyValue{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending != "" {
		key, value := splitProperty(pending)
		if key != "" {
			entries = append(entries, KeyValue{Key: key, Value: value})
		}
	}
	return entries, nil
}

func splitProperty(line string) (string, string) {
	idx := strings.IndexAny(line, "=: \t")
	if idx < 0 {
		return line, ""
	}
	key := line[:idx]
	rest := strings.TrimLeft(line[idx:], " \t")
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = rest[1:]
	}
	return key, strings.TrimSpace(rest)
}
