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

// Package pack converts between ragged collections of sequences and the
// dense layouts the kernels operate on.
//
// A ragged collection is a [][]T where element i is a flat row-major
// [length_i, dim] buffer; every sequence shares the same dim.
//
// Supported conversions:
//   - Pack / Unpack - ragged <-> time-major ragged.Padded batch
//   - Flatten / Unflatten - ragged <-> one concatenated [rows, dim] buffer,
//     optionally separated by zero padding rows
//   - InsertInto - ragged -> batch-major [batch, maxLen, dim] buffer
//
// Pack sorts sequences by descending length so that SizeAtT never increases
// over time; a recurrent kernel can then shrink its active batch to a prefix
// of the rows at every step and never touch padding.
package pack

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/ajroetker/go-ragged/ragged"
)

// Lengths returns the number of rows of every sequence. It fails with
// ragged.ErrShape if a sequence is not a whole number of dim-sized rows.
func Lengths[T ragged.Floats](seqs [][]T, dim int) ([]int, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("pack: feature dim %d: %w", dim, ragged.ErrShape)
	}
	lengths := make([]int, len(seqs))
	for i, s := range seqs {
		if len(s)%dim != 0 {
			return nil, fmt.Errorf("pack: sequence %d has %d values, not a multiple of dim %d: %w", i, len(s), dim, ragged.ErrShape)
		}
		lengths[i] = len(s) / dim
	}
	return lengths, nil
}

// SizeAtT returns, for every step t < maxLen, the number of lengths greater
// than t. sortedLengths must be sorted in descending order; the scan is a
// single pass over the lengths and the steps.
func SizeAtT(sortedLengths []int, maxLen int) []int {
	sizeAtT := make([]int, maxLen)
	k := len(sortedLengths)
	for t := range maxLen {
		for k > 0 && sortedLengths[k-1] <= t {
			k--
		}
		sizeAtT[t] = k
	}
	return sizeAtT
}

// Pack builds a time-major padded batch from seqs. Sequences are ordered by
// descending length; sequences of equal length keep their original relative
// order. Padding rows are zero.
func Pack[T ragged.Floats](seqs [][]T, dim int) (ragged.Padded[T], error) {
	lengths, err := Lengths(seqs, dim)
	if err != nil {
		return ragged.Padded[T]{}, err
	}

	switch len(seqs) {
	case 0:
		return ragged.Padded[T]{Dim: dim, SizeAtT: []int{}, Lengths: []int{}, Indices: []int{}}, nil
	case 1:
		sizeAtT := make([]int, lengths[0])
		for t := range sizeAtT {
			sizeAtT[t] = 1
		}
		return ragged.Padded[T]{
			Data:    slices.Clone(seqs[0]),
			MaxLen:  lengths[0],
			Batch:   1,
			Dim:     dim,
			SizeAtT: sizeAtT,
			Lengths: lengths,
			Indices: []int{0},
		}, nil
	}

	indices := make([]int, len(seqs))
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		return cmp.Compare(lengths[b], lengths[a])
	})
	sorted := make([]int, len(indices))
	for k, i := range indices {
		sorted[k] = lengths[i]
	}

	batch := len(seqs)
	maxLen := lo.Max(sorted)
	data := make([]T, maxLen*batch*dim)
	for k, i := range indices {
		src := seqs[i]
		for t := range sorted[k] {
			copy(data[(t*batch+k)*dim:(t*batch+k+1)*dim], src[t*dim:(t+1)*dim])
		}
	}

	return ragged.Padded[T]{
		Data:    data,
		MaxLen:  maxLen,
		Batch:   batch,
		Dim:     dim,
		SizeAtT: SizeAtT(sorted, maxLen),
		Lengths: sorted,
		Indices: indices,
	}, nil
}

// Unpack inverts Pack: it returns the sequences in their original order, each
// a freshly allocated [length, dim] buffer. Padding is never read.
func Unpack[T ragged.Floats](p ragged.Padded[T]) [][]T {
	seqs := make([][]T, len(p.Lengths))
	for k, length := range p.Lengths {
		seq := make([]T, length*p.Dim)
		for t := range length {
			off := (t*p.Batch + k) * p.Dim
			copy(seq[t*p.Dim:(t+1)*p.Dim], p.Data[off:off+p.Dim])
		}
		seqs[p.Indices[k]] = seq
	}
	return seqs
}

// Flatten concatenates seqs into one [rows, dim] buffer. When pad > 0, pad
// zero rows are placed before every sequence and after the last one, so
// rows = sum(lengths) + pad*(len(seqs)+1). It also returns the lengths.
func Flatten[T ragged.Floats](seqs [][]T, dim, pad int) ([]T, []int, error) {
	lengths, err := Lengths(seqs, dim)
	if err != nil {
		return nil, nil, err
	}
	if pad < 0 {
		return nil, nil, fmt.Errorf("pack: negative padding %d: %w", pad, ragged.ErrShape)
	}
	if len(seqs) == 0 {
		return []T{}, lengths, nil
	}

	rows := lo.Sum(lengths) + pad*(len(seqs)+1)
	out := make([]T, 0, rows*dim)
	gap := make([]T, pad*dim)
	for _, s := range seqs {
		out = append(out, gap...)
		out = append(out, s...)
	}
	out = append(out, gap...)
	return out, lengths, nil
}

// Unflatten splits a [rows, dim] buffer produced by Flatten back into
// sequences. The returned slices are views into x, capped so that appending
// to one never overwrites its neighbour.
func Unflatten[T ragged.Floats](x []T, lengths []int, dim, pad int) ([][]T, error) {
	if dim <= 0 || len(x)%dim != 0 {
		return nil, fmt.Errorf("pack: %d values do not form rows of dim %d: %w", len(x), dim, ragged.ErrShape)
	}
	if len(lengths) == 0 {
		return [][]T{}, nil
	}
	if pad < 0 {
		return nil, fmt.Errorf("pack: negative padding %d: %w", pad, ragged.ErrShape)
	}
	rows := len(x) / dim
	if err := ragged.CheckLengths(lengths, rows-pad*(len(lengths)+1), true); err != nil {
		return nil, err
	}

	seqs := make([][]T, len(lengths))
	row := 0
	for i, n := range lengths {
		row += pad
		start, end := row*dim, (row+n)*dim
		seqs[i] = x[start:end:end]
		row += n
	}
	return seqs, nil
}

// InsertInto copies seqs into a zero-filled batch-major [len(seqs), maxLen,
// dim] buffer. It fails if any sequence is longer than maxLen.
func InsertInto[T ragged.Floats](seqs [][]T, dim, maxLen int) ([]T, error) {
	lengths, err := Lengths(seqs, dim)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(seqs)*maxLen*dim)
	for i, s := range seqs {
		if lengths[i] > maxLen {
			return nil, fmt.Errorf("pack: sequence %d has length %d, longer than %d: %w", i, lengths[i], maxLen, ragged.ErrShape)
		}
		copy(out[i*maxLen*dim:], s)
	}
	return out, nil
}
