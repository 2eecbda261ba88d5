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

// Package softmax provides row-wise softmax and the ragged sequence softmax,
// which normalizes every column independently within each segment of a flat
// [rows, dim] batch.
package softmax

import (
	"fmt"
	stdmath "math"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/pool"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
)

// ClipRange bounds the inputs of Sequences before exponentiation. It keeps
// exp finite in single precision without the per-segment max.
const ClipRange = 20.0

// Softmax normalizes one row: output[i] = exp(x[i]-max) / sum(exp(x-max)).
// input and output may be the same slice.
func Softmax[T ragged.Floats](input, output []T) {
	size := min(len(input), len(output))
	if size == 0 {
		return
	}
	maxVal := input[0]
	for _, v := range input[1:size] {
		maxVal = max(maxVal, v)
	}
	var sum float64
	for i := range size {
		e := stdmath.Exp(float64(input[i] - maxVal))
		output[i] = T(e)
		sum += e
	}
	inv := T(1 / sum)
	for i := range size {
		output[i] *= inv
	}
}

// BackpropSoftmax computes dX = y*dY - y*sum(y*dY) for one row, where y is
// the Softmax output.
func BackpropSoftmax[T ragged.Floats](dY, y, dX []T) {
	size := min(len(dY), len(y), len(dX))
	var s T
	for i := range size {
		s += y[i] * dY[i]
	}
	for i := range size {
		dX[i] = y[i]*dY[i] - y[i]*s
	}
}

// ParallelSoftmax applies Softmax to each row of a [rows, cols] matrix.
func ParallelSoftmax[T ragged.Floats](pool *workerpool.Pool, input, output []T, rows, cols int) {
	if len(input) < rows*cols || len(output) < rows*cols {
		panic("softmax: slice too short")
	}
	pool.ParallelFor(rows, func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			Softmax(input[off:off+cols], output[off:off+cols])
		}
	})
}

// ParallelBackpropSoftmax applies BackpropSoftmax to each row of a
// [rows, cols] matrix.
func ParallelBackpropSoftmax[T ragged.Floats](pool *workerpool.Pool, dY, y, dX []T, rows, cols int) {
	if len(dY) < rows*cols || len(y) < rows*cols || len(dX) < rows*cols {
		panic("softmax: slice too short")
	}
	pool.ParallelFor(rows, func(start, end int) {
		for r := start; r < end; r++ {
			off := r * cols
			BackpropSoftmax(dY[off:off+cols], y[off:off+cols], dX[off:off+cols])
		}
	})
}

// Sequences computes the softmax of x over the rows of each segment
// described by lengths, independently per column. Inputs are clipped to
// [-ClipRange, ClipRange] before exponentiation and normalized by the
// segment sums obtained from pool.SumPool.
func Sequences[T ragged.Floats](x []T, lengths []int, dim int) ([]T, error) {
	return ParallelSequences(nil, x, lengths, dim)
}

// ParallelSequences is Sequences with the pooling distributed over p.
func ParallelSequences[T ragged.Floats](p *workerpool.Pool, x []T, lengths []int, dim int) ([]T, error) {
	e := make([]T, len(x))
	for i, v := range x {
		e[i] = T(stdmath.Exp(float64(min(max(v, -ClipRange), ClipRange))))
	}
	sums, err := pool.ParallelSumPool(p, e, lengths, dim)
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}
	denom, err := pool.ParallelBackpropSumPool(p, sums, lengths, dim)
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}
	for i := range e {
		e[i] /= denom[i]
	}
	return e, nil
}

// BackpropSequences is the backward pass of Sequences given its output y:
// dX = y*dY - y*broadcast(sumpool(y*dY)).
func BackpropSequences[T ragged.Floats](dY, y []T, lengths []int, dim int) ([]T, error) {
	return ParallelBackpropSequences(nil, dY, y, lengths, dim)
}

// ParallelBackpropSequences is BackpropSequences with the pooling
// distributed over p.
func ParallelBackpropSequences[T ragged.Floats](p *workerpool.Pool, dY, y []T, lengths []int, dim int) ([]T, error) {
	if len(dY) != len(y) {
		return nil, fmt.Errorf("softmax: gradient has %d values, output has %d: %w", len(dY), len(y), ragged.ErrShape)
	}
	dX := make([]T, len(y))
	for i := range dX {
		dX[i] = y[i] * dY[i]
	}
	sums, err := pool.ParallelSumPool(p, dX, lengths, dim)
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}
	spread, err := pool.ParallelBackpropSumPool(p, sums, lengths, dim)
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}
	for i := range dX {
		dX[i] -= y[i] * spread[i]
	}
	return dX, nil
}
