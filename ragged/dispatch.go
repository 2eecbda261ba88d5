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

package ragged

import (
	"runtime"
	"strings"

	"github.com/ajroetker/go-ragged/envconfig"
)

// DispatchLevel describes how kernels that have parallel variants execute.
type DispatchLevel int

const (
	// DispatchSequential runs every kernel on the calling goroutine.
	DispatchSequential DispatchLevel = iota

	// DispatchParallel lets row- and segment-parallel kernels spread work
	// over a worker pool once the input is large enough.
	DispatchParallel
)

// String returns a human-readable name for the dispatch level.
func (d DispatchLevel) String() string {
	switch d {
	case DispatchSequential:
		return "sequential"
	case DispatchParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// currentLevel is set by init() from the environment and GOMAXPROCS.
var currentLevel DispatchLevel

// cpuFeatures lists the detected CPU features relevant to the BLAS and
// elementwise kernels. Set by detectCPUFeatures in dispatch_*.go.
var cpuFeatures []string

func init() {
	cpuFeatures = detectCPUFeatures()
	if envconfig.NoParallel() || runtime.GOMAXPROCS(0) == 1 {
		currentLevel = DispatchSequential
		return
	}
	currentLevel = DispatchParallel
}

// CurrentLevel returns the dispatch level chosen at startup.
func CurrentLevel() DispatchLevel {
	return currentLevel
}

// CPUFeatures returns the detected CPU features, e.g. "avx2", "fma", "asimd".
func CPUFeatures() []string {
	return append([]string(nil), cpuFeatures...)
}

// Info is a one-line summary of the runtime configuration.
func Info() string {
	var b strings.Builder
	b.WriteString(runtime.GOARCH)
	b.WriteString(" level=")
	b.WriteString(currentLevel.String())
	if len(cpuFeatures) > 0 {
		b.WriteString(" features=")
		b.WriteString(strings.Join(cpuFeatures, ","))
	}
	return b.String()
}
