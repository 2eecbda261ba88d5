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
	"fmt"
	"slices"
)

// Padded is a batch of variable-length sequences packed into one dense,
// time-major buffer.
//
//   - Data is [MaxLen, Batch, Dim]; sequence k (in sorted order) occupies
//     rows (t, k) for t < Lengths[k].
//   - SizeAtT[t] is the number of sequences still active at step t, so the
//     first SizeAtT[t] rows of step t are valid and the rest are padding.
//   - Lengths is sorted in descending order.
//   - Indices[k] is the position in the original collection of the sequence
//     stored at batch row k.
//
// Padding rows hold placeholder values and must never be read.
type Padded[T Floats] struct {
	Data    []T
	MaxLen  int
	Batch   int
	Dim     int
	SizeAtT []int
	Lengths []int
	Indices []int
}

// Step returns the full [Batch, Dim] slice of time step t, padding included.
func (p Padded[T]) Step(t int) []T {
	n := p.Batch * p.Dim
	return p.Data[t*n : (t+1)*n]
}

// Active returns the [SizeAtT[t], Dim] slice of valid rows at time step t.
func (p Padded[T]) Active(t int) []T {
	off := t * p.Batch * p.Dim
	return p.Data[off : off+p.SizeAtT[t]*p.Dim]
}

// Tensor returns Data viewed as a [MaxLen, Batch, Dim] tensor.
func (p Padded[T]) Tensor() Tensor[T] {
	return Tensor[T]{Shape: []int{p.MaxLen, p.Batch, p.Dim}, Data: p.Data}
}

// Validate checks the bookkeeping invariants: matching array sizes, lengths
// sorted descending, indices forming a permutation, and SizeAtT agreeing with
// the lengths.
func (p Padded[T]) Validate() error {
	if len(p.Data) != p.MaxLen*p.Batch*p.Dim {
		return fmt.Errorf("padded data has %d elements, want %d*%d*%d: %w", len(p.Data), p.MaxLen, p.Batch, p.Dim, ErrShape)
	}
	if len(p.Lengths) != p.Batch || len(p.Indices) != p.Batch || len(p.SizeAtT) != p.MaxLen {
		return fmt.Errorf("padded bookkeeping sizes (%d lengths, %d indices, %d steps) disagree with batch %d, max length %d: %w",
			len(p.Lengths), len(p.Indices), len(p.SizeAtT), p.Batch, p.MaxLen, ErrShape)
	}
	seen := make([]bool, p.Batch)
	for k, idx := range p.Indices {
		if idx < 0 || idx >= p.Batch || seen[idx] {
			return fmt.Errorf("padded indices %v are not a permutation: %w", p.Indices, ErrShape)
		}
		seen[idx] = true
		if k > 0 && p.Lengths[k] > p.Lengths[k-1] {
			return fmt.Errorf("padded lengths %v are not sorted descending: %w", p.Lengths, ErrShape)
		}
	}
	if p.Batch > 0 && p.Lengths[0] != p.MaxLen {
		return fmt.Errorf("longest sequence has length %d, want %d: %w", p.Lengths[0], p.MaxLen, ErrShape)
	}
	k := p.Batch
	for t, n := range p.SizeAtT {
		for k > 0 && p.Lengths[k-1] <= t {
			k--
		}
		if n != k {
			return fmt.Errorf("size at step %d is %d, want %d: %w", t, n, k, ErrShape)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Padded[T]) Clone() Padded[T] {
	p.Data = slices.Clone(p.Data)
	p.SizeAtT = slices.Clone(p.SizeAtT)
	p.Lengths = slices.Clone(p.Lengths)
	p.Indices = slices.Clone(p.Indices)
	return p
}
