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

// Package pool reduces ragged segments of a flat [rows, dim] buffer to one
// row per segment, and scatters pooled gradients back.
//
// Segments are described by a lengths array: segment i owns the next
// lengths[i] rows, in order, and the lengths must sum to the row count.
// Every kernel has a Parallel form that distributes whole segments over a
// workerpool.Pool; passing a nil pool runs it on the calling goroutine.
package pool

import (
	"fmt"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
	"github.com/samber/lo"
)

// segments validates x against lengths and returns the row offsets.
func segments(n int, lengths []int, dim int, allowEmpty bool) ([]int, error) {
	if dim <= 0 || n%dim != 0 {
		return nil, fmt.Errorf("pool: %d values do not form rows of width %d: %w", n, dim, ragged.ErrShape)
	}
	if err := ragged.CheckLengths(lengths, n/dim, allowEmpty); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	return ragged.Offsets(lengths), nil
}

func checkPooled(n int, lengths []int, dim int) error {
	if dim <= 0 || n != len(lengths)*dim {
		return fmt.Errorf("pool: gradient has %d values, want %d segments of width %d: %w",
			n, len(lengths), dim, ragged.ErrShape)
	}
	return nil
}

// SumPool sums the rows of each segment. Empty segments pool to zero.
func SumPool[T ragged.Floats](x []T, lengths []int, dim int) ([]T, error) {
	return ParallelSumPool(nil, x, lengths, dim)
}

// ParallelSumPool is SumPool with segments distributed over pool.
func ParallelSumPool[T ragged.Floats](pool *workerpool.Pool, x []T, lengths []int, dim int) ([]T, error) {
	offsets, err := segments(len(x), lengths, dim, true)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(lengths)*dim)
	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			sumRows(x[offsets[s]*dim:offsets[s+1]*dim], out[s*dim:(s+1)*dim])
		}
	})
	return out, nil
}

func sumRows[T ragged.Floats](rows, dst []T) {
	dim := len(dst)
	for r := 0; r < len(rows); r += dim {
		for f, v := range rows[r : r+dim] {
			dst[f] += v
		}
	}
}

// MeanPool averages the rows of each segment. Zero-length segments are
// rejected with ragged.ErrEmptySegment.
func MeanPool[T ragged.Floats](x []T, lengths []int, dim int) ([]T, error) {
	return ParallelMeanPool(nil, x, lengths, dim)
}

// ParallelMeanPool is MeanPool with segments distributed over pool.
func ParallelMeanPool[T ragged.Floats](pool *workerpool.Pool, x []T, lengths []int, dim int) ([]T, error) {
	offsets, err := segments(len(x), lengths, dim, false)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(lengths)*dim)
	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			dst := out[s*dim : (s+1)*dim]
			sumRows(x[offsets[s]*dim:offsets[s+1]*dim], dst)
			scale := 1 / T(lengths[s])
			for f := range dst {
				dst[f] *= scale
			}
		}
	})
	return out, nil
}

// MaxPool takes the per-column maximum of each segment. which has the same
// [segments, dim] shape as the result and records, for every output value,
// the row within its segment that produced it; ties resolve to the earliest
// row. Zero-length segments are rejected with ragged.ErrEmptySegment.
func MaxPool[T ragged.Floats](x []T, lengths []int, dim int) ([]T, []int, error) {
	return ParallelMaxPool(nil, x, lengths, dim)
}

// ParallelMaxPool is MaxPool with segments distributed over pool.
func ParallelMaxPool[T ragged.Floats](pool *workerpool.Pool, x []T, lengths []int, dim int) ([]T, []int, error) {
	offsets, err := segments(len(x), lengths, dim, false)
	if err != nil {
		return nil, nil, err
	}
	out := make([]T, len(lengths)*dim)
	which := make([]int, len(lengths)*dim)
	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			dst := out[s*dim : (s+1)*dim]
			arg := which[s*dim : (s+1)*dim]
			start := offsets[s] * dim
			copy(dst, x[start:start+dim])
			for r := 1; r < lengths[s]; r++ {
				row := x[start+r*dim : start+(r+1)*dim]
				for f, v := range row {
					if v > dst[f] {
						dst[f] = v
						arg[f] = r
					}
				}
			}
		}
	})
	return out, which, nil
}

// BackpropSumPool broadcasts each segment's gradient row to every row of the
// segment.
func BackpropSumPool[T ragged.Floats](dY []T, lengths []int, dim int) ([]T, error) {
	return ParallelBackpropSumPool(nil, dY, lengths, dim)
}

// ParallelBackpropSumPool is BackpropSumPool with segments distributed over
// pool.
func ParallelBackpropSumPool[T ragged.Floats](pool *workerpool.Pool, dY []T, lengths []int, dim int) ([]T, error) {
	return broadcast(pool, dY, lengths, dim, true, false)
}

// BackpropMeanPool broadcasts each segment's gradient row divided by the
// segment length.
func BackpropMeanPool[T ragged.Floats](dY []T, lengths []int, dim int) ([]T, error) {
	return ParallelBackpropMeanPool(nil, dY, lengths, dim)
}

// ParallelBackpropMeanPool is BackpropMeanPool with segments distributed
// over pool.
func ParallelBackpropMeanPool[T ragged.Floats](pool *workerpool.Pool, dY []T, lengths []int, dim int) ([]T, error) {
	return broadcast(pool, dY, lengths, dim, false, true)
}

func broadcast[T ragged.Floats](pool *workerpool.Pool, dY []T, lengths []int, dim int, allowEmpty, mean bool) ([]T, error) {
	if err := checkPooled(len(dY), lengths, dim); err != nil {
		return nil, err
	}
	if err := ragged.CheckLengths(lengths, lo.Sum(lengths), allowEmpty); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	offsets := ragged.Offsets(lengths)
	dX := make([]T, offsets[len(lengths)]*dim)
	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			g := dY[s*dim : (s+1)*dim]
			scale := T(1)
			if mean {
				scale = 1 / T(lengths[s])
			}
			for r := offsets[s]; r < offsets[s+1]; r++ {
				row := dX[r*dim : (r+1)*dim]
				for f, v := range g {
					row[f] = v * scale
				}
			}
		}
	})
	return dX, nil
}

// BackpropMaxPool routes each pooled gradient value to the row recorded in
// which; every other row receives zero.
func BackpropMaxPool[T ragged.Floats](dY []T, which []int, lengths []int, dim int) ([]T, error) {
	return ParallelBackpropMaxPool(nil, dY, which, lengths, dim)
}

// ParallelBackpropMaxPool is BackpropMaxPool with segments distributed over
// pool.
func ParallelBackpropMaxPool[T ragged.Floats](pool *workerpool.Pool, dY []T, which []int, lengths []int, dim int) ([]T, error) {
	if err := checkPooled(len(dY), lengths, dim); err != nil {
		return nil, err
	}
	if len(which) != len(dY) {
		return nil, fmt.Errorf("pool: which has %d entries, gradient has %d: %w", len(which), len(dY), ragged.ErrShape)
	}
	if err := ragged.CheckLengths(lengths, lo.Sum(lengths), false); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	for i, r := range which {
		if s := i / dim; r < 0 || r >= lengths[s] {
			return nil, fmt.Errorf("pool: which[%d] = %d outside segment %d of length %d: %w",
				i, r, s, lengths[s], ragged.ErrShape)
		}
	}
	offsets := ragged.Offsets(lengths)
	dX := make([]T, offsets[len(lengths)]*dim)
	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			base := offsets[s] * dim
			for f := range dim {
				i := s*dim + f
				dX[base+which[i]*dim+f] = dY[i]
			}
		}
	})
	return dX, nil
}
