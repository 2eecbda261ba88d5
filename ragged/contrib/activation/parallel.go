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

package activation

import (
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
)

// Parallel tuning parameters for row-parallel elementwise kernels.
const (
	// MinParallelActivationOps is the minimum total element count before a
	// memory-bound elementwise kernel is split across workers.
	MinParallelActivationOps = 16384

	// ActivationRowBatch is the number of rows handed to a worker per grab.
	ActivationRowBatch = 4
)

// ParallelApplyRows applies fn to each row of a [rows, cols] matrix in
// parallel. fn receives the input and output slices for a single row.
//
// Falls back to sequential execution when pool is nil or the total element
// count is below MinParallelActivationOps.
func ParallelApplyRows[T ragged.Floats](pool *workerpool.Pool, input, output []T, rows, cols int, fn func(input, output []T)) {
	if pool == nil || rows*cols < MinParallelActivationOps {
		for r := range rows {
			off := r * cols
			fn(input[off:off+cols], output[off:off+cols])
		}
		return
	}

	pool.ParallelForAtomicBatched(rows, ActivationRowBatch, func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			fn(input[off:off+cols], output[off:off+cols])
		}
	})
}

// ParallelApplyRows2 is ParallelApplyRows for backward kernels that read two
// row-aligned inputs (typically dY and a saved forward value).
func ParallelApplyRows2[T ragged.Floats](pool *workerpool.Pool, a, b, output []T, rows, cols int, fn func(a, b, output []T)) {
	if pool == nil || rows*cols < MinParallelActivationOps {
		for r := range rows {
			off := r * cols
			fn(a[off:off+cols], b[off:off+cols], output[off:off+cols])
		}
		return
	}

	pool.ParallelForAtomicBatched(rows, ActivationRowBatch, func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			fn(a[off:off+cols], b[off:off+cols], output[off:off+cols])
		}
	})
}

// ParallelReLU applies ReLU across a [rows, cols] matrix in parallel.
func ParallelReLU[T ragged.Floats](pool *workerpool.Pool, input, output []T, rows, cols int) {
	ParallelApplyRows(pool, input, output, rows, cols, ReLU[T])
}

// ParallelSigmoid applies Sigmoid across a [rows, cols] matrix in parallel.
func ParallelSigmoid[T ragged.Floats](pool *workerpool.Pool, input, output []T, rows, cols int) {
	ParallelApplyRows(pool, input, output, rows, cols, Sigmoid[T])
}

// ParallelTanh applies Tanh across a [rows, cols] matrix in parallel.
func ParallelTanh[T ragged.Floats](pool *workerpool.Pool, input, output []T, rows, cols int) {
	ParallelApplyRows(pool, input, output, rows, cols, Tanh[T])
}

// ParallelMish applies Mish across a [rows, cols] matrix in parallel.
func ParallelMish[T ragged.Floats](pool *workerpool.Pool, input, output []T, rows, cols int, threshold T) {
	ParallelApplyRows(pool, input, output, rows, cols, func(in, out []T) {
		Mish(in, out, threshold)
	})
}

// ParallelBackpropMish computes BackpropMish across a [rows, cols] matrix in
// parallel.
func ParallelBackpropMish[T ragged.Floats](pool *workerpool.Pool, dY, x, dX []T, rows, cols int, threshold T) {
	ParallelApplyRows2(pool, dY, x, dX, rows, cols, func(dy, xr, dx []T) {
		BackpropMish(dy, xr, dx, threshold)
	})
}

// ParallelBackpropReLU computes BackpropReLU across a [rows, cols] matrix in
// parallel.
func ParallelBackpropReLU[T ragged.Floats](pool *workerpool.Pool, dY, y, dX []T, rows, cols int) {
	ParallelApplyRows2(pool, dY, y, dX, rows, cols, BackpropReLU[T])
}
