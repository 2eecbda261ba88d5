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

// Package activation provides elementwise nonlinearities and their backward
// kernels.
//
// Every kernel takes its inputs followed by its output slice and writes
// min(len(inputs), len(output)) elements. Passing the same slice as input and
// output is the in-place variant; distinct slices give the copying variant,
// which never modifies its inputs.
//
// Backward kernels for sigmoid, tanh and ReLU are expressed in terms of the
// forward output Y, so callers only need to keep Y alive, not X.
package activation

import (
	stdmath "math"

	"github.com/ajroetker/go-ragged/ragged"
)

// DefaultMishThreshold is the input value above which Mish is treated as the
// identity.
const DefaultMishThreshold = 20.0

// ReLU computes max(0, x).
func ReLU[T ragged.Floats](input, output []T) {
	size := min(len(input), len(output))
	for i := range size {
		x := input[i]
		if x > 0 {
			output[i] = x
		} else {
			output[i] = 0
		}
	}
}

// BackpropReLU computes dX = dY where Y > 0, else 0.
func BackpropReLU[T ragged.Floats](dY, y, dX []T) {
	size := min(len(dY), len(y), len(dX))
	for i := range size {
		if y[i] > 0 {
			dX[i] = dY[i]
		} else {
			dX[i] = 0
		}
	}
}

// Sigmoid computes 1 / (1 + exp(-x)) without overflowing for large |x|.
func Sigmoid[T ragged.Floats](input, output []T) {
	size := min(len(input), len(output))
	for i := range size {
		output[i] = T(sigmoid(float64(input[i])))
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + stdmath.Exp(-x))
	}
	e := stdmath.Exp(x)
	return e / (1 + e)
}

// DSigmoid computes the sigmoid derivative from its output: y * (1 - y).
func DSigmoid[T ragged.Floats](y, output []T) {
	size := min(len(y), len(output))
	for i := range size {
		output[i] = y[i] * (1 - y[i])
	}
}

// BackpropSigmoid computes dX = dY * y * (1 - y).
func BackpropSigmoid[T ragged.Floats](dY, y, dX []T) {
	size := min(len(dY), len(y), len(dX))
	for i := range size {
		dX[i] = dY[i] * y[i] * (1 - y[i])
	}
}

// Tanh computes the hyperbolic tangent.
func Tanh[T ragged.Floats](input, output []T) {
	size := min(len(input), len(output))
	for i := range size {
		output[i] = T(stdmath.Tanh(float64(input[i])))
	}
}

// DTanh computes the tanh derivative from its output: 1 - y^2.
func DTanh[T ragged.Floats](y, output []T) {
	size := min(len(y), len(output))
	for i := range size {
		output[i] = 1 - y[i]*y[i]
	}
}

// BackpropTanh computes dX = dY * (1 - y^2).
func BackpropTanh[T ragged.Floats](dY, y, dX []T) {
	size := min(len(dY), len(y), len(dX))
	for i := range size {
		dX[i] = dY[i] * (1 - y[i]*y[i])
	}
}

// Mish computes x * tanh(softplus(x)). Inputs at or above threshold pass
// through unchanged, since the result equals x to working precision there.
func Mish[T ragged.Floats](input, output []T, threshold T) {
	size := min(len(input), len(output))
	for i := range size {
		x := input[i]
		if x >= threshold {
			output[i] = x
			continue
		}
		xf := float64(x)
		output[i] = T(xf * stdmath.Tanh(stdmath.Log1p(stdmath.Exp(xf))))
	}
}

// BackpropMish computes dX = dY * mish'(x). At or above threshold the
// derivative is taken to be 1, matching the forward pass-through.
//
//	mish'(x) = exp(x) * omega / delta^2
//	omega    = 4(x+1) + 4exp(2x) + exp(3x) + exp(x)(4x+6)
//	delta    = 2exp(x) + exp(2x) + 2
func BackpropMish[T ragged.Floats](dY, x, dX []T, threshold T) {
	size := min(len(dY), len(x), len(dX))
	for i := range size {
		if x[i] >= threshold {
			dX[i] = dY[i]
			continue
		}
		xf := float64(x[i])
		e := stdmath.Exp(xf)
		e2 := e * e
		e3 := e2 * e
		omega := 4*(xf+1) + 4*e2 + e3 + e*(4*xf+6)
		delta := 2*e + e2 + 2
		dX[i] = T(float64(dY[i]) * e * omega / (delta * delta))
	}
}

// Maxout reduces the last axis of a [rows, pieces] buffer (rows may itself be
// batch*outputs) to its maximum, writing the winning piece index to which.
// Ties resolve to the first maximum.
func Maxout[T ragged.Floats](input, output []T, which []int, pieces int) {
	rows := len(input) / pieces
	if len(output) < rows || len(which) < rows {
		panic("activation: maxout output too short")
	}
	for r := range rows {
		row := input[r*pieces : (r+1)*pieces]
		best := 0
		for p := 1; p < pieces; p++ {
			if row[p] > row[best] {
				best = p
			}
		}
		output[r] = row[best]
		which[r] = best
	}
}

// BackpropMaxout scatters dY into a zeroed [rows, pieces] gradient at the
// positions recorded by Maxout.
func BackpropMaxout[T ragged.Floats](dY []T, which []int, dX []T, pieces int) {
	rows := min(len(dY), len(which))
	if len(dX) < rows*pieces {
		panic("activation: maxout gradient too short")
	}
	clear(dX[:rows*pieces])
	for r := range rows {
		dX[r*pieces+which[r]] = dY[r]
	}
}
