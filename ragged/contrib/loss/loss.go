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

// Package loss provides row-wise similarity and loss kernels. Zero vectors
// and zero probabilities are handled with an additive Epsilon rather than
// errors, so gradients stay defined everywhere.
package loss

import (
	"fmt"
	stdmath "math"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/linalg"
)

// Epsilon is added to vectors and probabilities before norms and logs.
const Epsilon = 1e-8

func rowsOf(n, dim int) (int, error) {
	if dim <= 0 || n%dim != 0 {
		return 0, fmt.Errorf("loss: %d values do not form rows of width %d: %w", n, dim, ragged.ErrShape)
	}
	return n / dim, nil
}

// Cosine returns the cosine similarity of every row pair of x and y, both
// [rows, dim]. Epsilon is added to every element first.
func Cosine[T ragged.Floats](x, y []T, dim int) ([]T, error) {
	rows, err := rowsOf(len(x), dim)
	if err != nil {
		return nil, err
	}
	if len(y) != len(x) {
		return nil, fmt.Errorf("loss: x has %d values, y has %d: %w", len(x), len(y), ragged.ErrShape)
	}
	out := make([]T, rows)
	xr := make([]T, dim)
	yr := make([]T, dim)
	for r := range rows {
		for f := range dim {
			xr[f] = x[r*dim+f] + Epsilon
			yr[f] = y[r*dim+f] + Epsilon
		}
		out[r] = linalg.Dot(xr, yr) / (linalg.Nrm2(xr) * linalg.Nrm2(yr))
	}
	return out, nil
}

// CosineAbsLoss returns sum(|cosine(x, y) - 1|) over rows. With ignoreZeros,
// rows whose target y is all zeros do not count.
func CosineAbsLoss[T ragged.Floats](x, y []T, dim int, ignoreZeros bool) (T, error) {
	cos, err := Cosine(x, y, dim)
	if err != nil {
		return 0, err
	}
	var total T
	for r, c := range cos {
		if ignoreZeros && isZero(y[r*dim:(r+1)*dim]) {
			continue
		}
		total += T(stdmath.Abs(float64(c - 1)))
	}
	return total, nil
}

func isZero[T ragged.Floats](row []T) bool {
	for _, v := range row {
		if v != 0 {
			return false
		}
	}
	return true
}

// Logloss writes the elementwise binary cross-entropy of yPred against
// yTrue to output.
func Logloss[T ragged.Floats](yTrue, yPred, output []T) {
	n := len(yPred)
	if len(yTrue) < n || len(output) < n {
		panic("loss: logloss slice too short")
	}
	for i, p := range yPred {
		pf, tf := float64(p), float64(yTrue[i])
		output[i] = T(-(tf*stdmath.Log(pf+Epsilon) + (1-tf)*stdmath.Log(1-pf+Epsilon)))
	}
}

// Norms returns the L2 norm of every row of x, with zero norms replaced by
// 1 so the result can be used as a divisor.
func Norms[T ragged.Floats](x []T, dim int) ([]T, error) {
	rows, err := rowsOf(len(x), dim)
	if err != nil {
		return nil, err
	}
	out := make([]T, rows)
	for r := range rows {
		n := linalg.Nrm2(x[r*dim : (r+1)*dim])
		if n == 0 {
			n = 1
		}
		out[r] = n
	}
	return out, nil
}
