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

package linalg

import (
	"github.com/ajroetker/go-ragged/ragged"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

func transpose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

// Gemm computes C = alpha * op(A) @ op(B) + beta * C, where op(X) is X or
// X^T depending on the transpose flags. op(A) is [m, k], op(B) is [k, n] and
// C is [m, n]; lda, ldb and ldc are the row strides of the stored matrices.
//
// With beta == 1 the product accumulates into C, which is how the backward
// kernels sum weight gradients across steps.
func Gemm[T ragged.Floats](transA, transB bool, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int) {
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		// BLAS rejects zero-width operands; the product is empty.
		for i := range m {
			row := c[i*ldc : i*ldc+n]
			if beta == 0 {
				clear(row)
				continue
			}
			for j := range row {
				row[j] *= beta
			}
		}
		return
	}

	aRows, aCols := m, k
	if transA {
		aRows, aCols = k, m
	}
	bRows, bCols := k, n
	if transB {
		bRows, bCols = n, k
	}

	switch cs := any(c).(type) {
	case []float32:
		blas32.Gemm(transpose(transA), transpose(transB), float32(alpha),
			blas32.General{Rows: aRows, Cols: aCols, Stride: lda, Data: any(a).([]float32)},
			blas32.General{Rows: bRows, Cols: bCols, Stride: ldb, Data: any(b).([]float32)},
			float32(beta),
			blas32.General{Rows: m, Cols: n, Stride: ldc, Data: cs})
	case []float64:
		blas64.Gemm(transpose(transA), transpose(transB), float64(alpha),
			blas64.General{Rows: aRows, Cols: aCols, Stride: lda, Data: any(a).([]float64)},
			blas64.General{Rows: bRows, Cols: bCols, Stride: ldb, Data: any(b).([]float64)},
			float64(beta),
			blas64.General{Rows: m, Cols: n, Stride: ldc, Data: cs})
	}
}

// Dot returns the inner product of x and y over their common prefix.
func Dot[T ragged.Floats](x, y []T) T {
	n := min(len(x), len(y))
	if n == 0 {
		return 0
	}
	switch xs := any(x).(type) {
	case []float32:
		return T(blas32.Dot(
			blas32.Vector{N: n, Inc: 1, Data: xs},
			blas32.Vector{N: n, Inc: 1, Data: any(y).([]float32)}))
	case []float64:
		return T(blas64.Dot(
			blas64.Vector{N: n, Inc: 1, Data: xs},
			blas64.Vector{N: n, Inc: 1, Data: any(y).([]float64)}))
	}
	return 0
}

// Nrm2 returns the Euclidean norm of x.
func Nrm2[T ragged.Floats](x []T) T {
	if len(x) == 0 {
		return 0
	}
	switch xs := any(x).(type) {
	case []float32:
		return T(blas32.Nrm2(blas32.Vector{N: len(xs), Inc: 1, Data: xs}))
	case []float64:
		return T(blas64.Nrm2(blas64.Vector{N: len(xs), Inc: 1, Data: xs}))
	}
	return 0
}

// ScaleInPlace multiplies every element of x by alpha.
func ScaleInPlace[T ragged.Floats](alpha T, x []T) {
	if len(x) == 0 {
		return
	}
	switch xs := any(x).(type) {
	case []float32:
		blas32.Scal(float32(alpha), blas32.Vector{N: len(xs), Inc: 1, Data: xs})
	case []float64:
		blas64.Scal(float64(alpha), blas64.Vector{N: len(xs), Inc: 1, Data: xs})
	}
}

// Axpy computes y += alpha * x over the common prefix of x and y.
func Axpy[T ragged.Floats](alpha T, x, y []T) {
	n := min(len(x), len(y))
	if n == 0 {
		return
	}
	switch xs := any(x).(type) {
	case []float32:
		blas32.Axpy(float32(alpha),
			blas32.Vector{N: n, Inc: 1, Data: xs},
			blas32.Vector{N: n, Inc: 1, Data: any(y).([]float32)})
	case []float64:
		blas64.Axpy(float64(alpha),
			blas64.Vector{N: n, Inc: 1, Data: xs},
			blas64.Vector{N: n, Inc: 1, Data: any(y).([]float64)})
	}
}
