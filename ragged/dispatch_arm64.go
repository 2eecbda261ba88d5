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

//go:build arm64

package ragged

import "golang.org/x/sys/cpu"

func detectCPUFeatures() []string {
	var features []string
	// ASIMD (NEON) is part of the ARMv8-A base architecture.
	if cpu.ARM64.HasASIMD {
		features = append(features, "asimd")
	}
	if cpu.ARM64.HasFPHP {
		features = append(features, "fphp")
	}
	if cpu.ARM64.HasSVE {
		features = append(features, "sve")
	}
	return features
}
