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

// Floats is the element constraint for all kernels. It is closed over the two
// native float types so kernels can hand buffers to BLAS without conversion.
type Floats interface {
	float32 | float64
}

// Tensor is a dense, contiguous, row-major buffer with an explicit shape.
//
// Tensor is a value type: copying a Tensor shares its Data. Use Clone for an
// independent copy.
type Tensor[T Floats] struct {
	Shape []int
	Data  []T
}

// New allocates a zero-filled tensor of the given shape.
func New[T Floats](shape ...int) Tensor[T] {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("ragged: negative dimension %d in shape %v", d, shape))
		}
		n *= d
	}
	return Tensor[T]{Shape: slices.Clone(shape), Data: make([]T, n)}
}

// FromSlice wraps data with the given shape without copying.
// It panics if len(data) does not match the shape.
func FromSlice[T Floats](data []T, shape ...int) Tensor[T] {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		panic(fmt.Sprintf("ragged: %d elements cannot have shape %v", len(data), shape))
	}
	return Tensor[T]{Shape: slices.Clone(shape), Data: data}
}

// NDim returns the number of dimensions.
func (t Tensor[T]) NDim() int {
	return len(t.Shape)
}

// Dim returns the size of axis i. Negative i counts from the last axis.
func (t Tensor[T]) Dim(i int) int {
	if i < 0 {
		i += len(t.Shape)
	}
	return t.Shape[i]
}

// Size returns the total number of elements.
func (t Tensor[T]) Size() int {
	return len(t.Data)
}

// Reshape returns a view of the same data with a new shape. One dimension may
// be -1, in which case it is inferred.
func (t Tensor[T]) Reshape(shape ...int) (Tensor[T], error) {
	shape = slices.Clone(shape)
	infer := -1
	n := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				return Tensor[T]{}, fmt.Errorf("reshape %v: more than one inferred dimension: %w", shape, ErrShape)
			}
			infer = i
			continue
		}
		n *= d
	}
	if infer >= 0 {
		if n == 0 || len(t.Data)%n != 0 {
			return Tensor[T]{}, fmt.Errorf("reshape %v -> %v: %w", t.Shape, shape, ErrShape)
		}
		shape[infer] = len(t.Data) / n
		n *= shape[infer]
	}
	if n != len(t.Data) {
		return Tensor[T]{}, fmt.Errorf("reshape %v -> %v: %w", t.Shape, shape, ErrShape)
	}
	return Tensor[T]{Shape: shape, Data: t.Data}, nil
}

// Index returns a view of the i-th slice along the first axis.
func (t Tensor[T]) Index(i int) Tensor[T] {
	if len(t.Shape) == 0 {
		panic("ragged: Index on a scalar tensor")
	}
	stride := 1
	for _, d := range t.Shape[1:] {
		stride *= d
	}
	return Tensor[T]{Shape: slices.Clone(t.Shape[1:]), Data: t.Data[i*stride : (i+1)*stride]}
}

// Clone returns a deep copy.
func (t Tensor[T]) Clone() Tensor[T] {
	return Tensor[T]{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// Transpose01 swaps the first two axes, copying the data. It is used to move
// between batch-major [batch, time, ...] and time-major [time, batch, ...].
func (t Tensor[T]) Transpose01() Tensor[T] {
	if len(t.Shape) < 2 {
		panic("ragged: Transpose01 needs at least two dimensions")
	}
	a, b := t.Shape[0], t.Shape[1]
	inner := 1
	for _, d := range t.Shape[2:] {
		inner *= d
	}
	shape := slices.Clone(t.Shape)
	shape[0], shape[1] = b, a
	out := make([]T, len(t.Data))
	for i := range a {
		for j := range b {
			copy(out[(j*a+i)*inner:(j*a+i+1)*inner], t.Data[(i*b+j)*inner:(i*b+j+1)*inner])
		}
	}
	return Tensor[T]{Shape: shape, Data: out}
}

// String returns a short description, not the contents.
func (t Tensor[T]) String() string {
	var zero T
	return fmt.Sprintf("Tensor[%T]%v", zero, t.Shape)
}
