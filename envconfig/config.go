// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package envconfig reads go-ragged settings from the environment.
//
// Every setting is exposed as a function so that the environment is read at
// the point of use; tests can override values with t.Setenv.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Var returns an environment variable with surrounding whitespace and quotes
// removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// BoolWithDefault returns a getter for a boolean variable. Any non-empty value
// that does not parse as a bool counts as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a getter for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// Uint returns a getter for an unsigned integer variable. Invalid values are
// logged and replaced by defaultValue.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// NoParallel forces every kernel to run on the calling goroutine.
	// Configured via RAGGED_NO_PARALLEL.
	NoParallel = Bool("RAGGED_NO_PARALLEL")

	// PlanCacheSize bounds the number of shape-specialized plans kept by a
	// backend. Zero disables the cache. Configured via RAGGED_PLAN_CACHE.
	PlanCacheSize = Uint("RAGGED_PLAN_CACHE", 256)

	numWorkers = Uint("RAGGED_NUM_WORKERS", 0)
)

// NumWorkers returns the worker pool size. Configured via RAGGED_NUM_WORKERS;
// zero or unset means GOMAXPROCS.
func NumWorkers() int {
	if n := numWorkers(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}

// LogLevel returns the log level. Configured via RAGGED_DEBUG: a true boolean
// selects debug, an integer n selects level -4n.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("RAGGED_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// EnvVar describes one setting.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every setting with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"RAGGED_DEBUG":       {"RAGGED_DEBUG", LogLevel(), "Show additional debug information (e.g. RAGGED_DEBUG=1)"},
		"RAGGED_NO_PARALLEL": {"RAGGED_NO_PARALLEL", NoParallel(), "Run kernels sequentially on the calling goroutine"},
		"RAGGED_NUM_WORKERS": {"RAGGED_NUM_WORKERS", NumWorkers(), "Worker pool size (default GOMAXPROCS)"},
		"RAGGED_PLAN_CACHE":  {"RAGGED_PLAN_CACHE", PlanCacheSize(), "Maximum number of cached shape-specialized plans (0 disables)"},
	}
}

// Values returns every setting formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
