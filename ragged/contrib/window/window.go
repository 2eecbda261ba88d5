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

// Package window implements seq2col: every row of a sequence is replaced by
// the concatenation of itself and its neighbours within a fixed radius, which
// turns a 1-D convolution over the sequence into a single matrix multiply.
//
// For a [rows, dim] input and radius r the output is [rows, dim*(2r+1)].
// Column block j of row t holds input row t-r+j; blocks whose source row
// falls outside the sequence (or outside the row's segment, for the
// segmented variants) are zero.
//
// Only radius 1 is supported. Other radii fail with
// ragged.ErrUnsupportedWindow.
package window

import (
	"fmt"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
)

// MaxRadius is the largest supported window radius.
const MaxRadius = 1

// CheckRadius returns ragged.ErrUnsupportedWindow for radii other than 1.
func CheckRadius(radius int) error {
	if radius < 1 || radius > MaxRadius {
		return fmt.Errorf("window: radius %d (only %d is supported): %w", radius, MaxRadius, ragged.ErrUnsupportedWindow)
	}
	return nil
}

// Seq2Col windows a single [rows, dim] sequence.
func Seq2Col[T ragged.Floats](seq []T, dim, radius int) ([]T, error) {
	return ParallelSeq2Col(nil, seq, nil, dim, radius)
}

// BackpropSeq2Col is the adjoint of Seq2Col: it maps a [rows, dim*(2r+1)]
// gradient back to [rows, dim], summing the contribution of every window an
// input row appeared in.
func BackpropSeq2Col[T ragged.Floats](dcols []T, dim, radius int) ([]T, error) {
	return ParallelBackpropSeq2Col(nil, dcols, nil, dim, radius)
}

// ParallelSeq2Col windows a flat batch of sequences delimited by lengths;
// windows never reach across a segment boundary. A nil lengths treats the
// whole buffer as one sequence. Segments are processed in parallel on pool,
// which may be nil.
func ParallelSeq2Col[T ragged.Floats](pool *workerpool.Pool, seq []T, lengths []int, dim, radius int) ([]T, error) {
	offsets, err := segmentOffsets(len(seq), lengths, dim, radius, 1)
	if err != nil {
		return nil, err
	}
	nF := 2*radius + 1
	cols := make([]T, len(seq)*nF)
	width := dim * nF

	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			start, end := offsets[s], offsets[s+1]
			for t := start; t < end; t++ {
				row := cols[t*width : (t+1)*width]
				for j := range nF {
					src := t - radius + j
					if src < start || src >= end {
						continue
					}
					copy(row[j*dim:(j+1)*dim], seq[src*dim:(src+1)*dim])
				}
			}
		}
	})
	return cols, nil
}

// ParallelBackpropSeq2Col is the adjoint of ParallelSeq2Col for the same
// lengths.
func ParallelBackpropSeq2Col[T ragged.Floats](pool *workerpool.Pool, dcols []T, lengths []int, dim, radius int) ([]T, error) {
	nF := 2*radius + 1
	offsets, err := segmentOffsets(len(dcols), lengths, dim, radius, nF)
	if err != nil {
		return nil, err
	}
	width := dim * nF
	dseq := make([]T, len(dcols)/nF)

	pool.ParallelSegments(offsets, func(first, last int) {
		for s := first; s < last; s++ {
			start, end := offsets[s], offsets[s+1]
			for t := start; t < end; t++ {
				row := dcols[t*width : (t+1)*width]
				for j := range nF {
					src := t - radius + j
					if src < start || src >= end {
						continue
					}
					dst := dseq[src*dim : (src+1)*dim]
					for f, g := range row[j*dim : (j+1)*dim] {
						dst[f] += g
					}
				}
			}
		}
	})
	return dseq, nil
}

// segmentOffsets validates the arguments shared by the forward and backward
// kernels and returns the segment row offsets. n is the buffer length, and
// each row holds dim*blocks values.
func segmentOffsets(n int, lengths []int, dim, radius, blocks int) ([]int, error) {
	if err := CheckRadius(radius); err != nil {
		return nil, err
	}
	if dim <= 0 || n%(dim*blocks) != 0 {
		return nil, fmt.Errorf("window: %d values do not form rows of width %d: %w", n, dim*blocks, ragged.ErrShape)
	}
	rows := n / (dim * blocks)
	if lengths == nil {
		return []int{0, rows}, nil
	}
	if err := ragged.CheckLengths(lengths, rows, true); err != nil {
		return nil, err
	}
	return ragged.Offsets(lengths), nil
}
