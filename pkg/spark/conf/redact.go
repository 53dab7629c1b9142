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

import "regexp"

// RedactedValue replaces sensitive values in listings and logs.
const RedactedValue = "*********(redacted)"

var defaultRedaction = regexp.MustCompile(DefaultRedactionRegex)

func (c *Conf) redactionPattern() *regexp.Regexp {
	raw, ok := c.Get(RedactionRegex)
	if !ok || raw == "" {
		return defaultRedaction
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return defaultRedaction
	}
	return re
}

// Redact masks value when key matches spark.redaction.regex.
func (c *Conf) Redact(key, value string) string {
	if c.redactionPattern().MatchString(key) {
		return RedactedValue
	}
	return value
}

// Redacted returns every entry in insertion order with sensitive values masked.
func (c *Conf) Redacted() []KeyValue {
	re := c.redactionPattern()
	all := c.All()
	for i := range all {
		if re.MatchString(all[i].Key) {
			all[i].Value = RedactedValue
		}
	}
	return all
}

// LogValues flattens the redacted entries into key/value pairs for logr.
func (c *Conf) LogValues() []interface{} {
	out := []interface{}{}
	for _, kv := range c.Redacted() {
		out = append(out, kv.Key, kv.Value)
	}
	return out
}
