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

// Package linalg provides the dense matrix kernels used by the affine and
// recurrent layers. Matrices are flat row-major slices with an explicit
// leading dimension, and the heavy lifting is delegated to gonum's pure-Go
// BLAS implementation through blas32 and blas64.
//
// The affine layout follows the fully-connected convention used throughout
// this module:
//
//   - x is [batchSize, inFeatures]
//   - weight is [outFeatures, inFeatures]
//   - bias is [outFeatures]
//   - output is [batchSize, outFeatures]
//
// so that output = x @ weight^T + bias.
package linalg
