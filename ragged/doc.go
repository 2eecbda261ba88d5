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

// Package ragged provides the core data types shared by the go-ragged kernels:
// dense tensor buffers, padded (time-major) batches built from variable-length
// sequences, segment length arrays, and runtime dispatch information.
//
// The kernels themselves live in the contrib packages:
//
//   - contrib/pack - Pack/Unpack between ragged sequences and Padded batches
//   - contrib/window - Seq2Col windowing and its adjoint
//   - contrib/activation - ReLU, Mish, Sigmoid, Tanh derivatives, Maxout
//   - contrib/linalg - Gemm and affine transforms (gonum BLAS)
//   - contrib/pool - sum/mean/max pooling over segments
//   - contrib/softmax - row and per-segment softmax
//   - contrib/lstm - LSTM cell and full recurrence, forward and backward
//   - contrib/optim - Adam and weight averaging updates
//   - contrib/loss - cosine and log loss helpers
//
// # Layout Conventions
//
// All buffers are flat row-major slices. A 2-D buffer of shape [rows, cols]
// stores element (r, c) at index r*cols+c. Padded batches are time-major:
// element (t, b, f) of a [maxLen, batch, dim] buffer is stored at
// (t*batch+b)*dim+f, so one time step across the whole batch is contiguous.
//
// # Errors
//
// Kernels panic when a caller-provided output slice is shorter than the
// dimensions it was described with. Conditions that depend on the data, such
// as an empty segment passed to mean pooling, are reported as errors wrapping
// one of the sentinel values in this package.
package ragged
