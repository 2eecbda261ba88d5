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

// Command ragged inspects the runtime configuration of the ragged kernels
// and exercises them on random batches.
//
// Usage:
//
//	ragged env                      # print RAGGED_* settings
//	ragged info                     # dispatch level, CPU features, backends
//	ragged check --half             # self-checks on float16-representable data
//	ragged bench --dtype float64    # kernel timings over concurrent batches
//
// Set RAGGED_DEBUG=1 for debug logging.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
