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

// Package lstm implements the LSTM cell and its recurrence over a time-major
// padded batch, with hand-derived backward passes.
//
// A single affine transform maps the concatenation [x_t, h_{t-1}] to the
// four gate pre-activations. Gates are laid out gate-major within each row:
// column g*NO + j holds unit j of gate g, in the order forget, input,
// output, candidate.
//
//	f, i, o = sigmoid(a_f), sigmoid(a_i), sigmoid(a_o)
//	g       = tanh(a_c)
//	c_t     = f*c_{t-1} + i*g
//	h_t     = tanh(c_t)*o
//
// The recurrence narrows the active batch to SizeAtT[t] rows at step t, so
// sequences must be sorted by descending length, as pack.Pack produces.
package lstm

import (
	"fmt"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/random"
)

// Gate offsets, in units of NO, within a row of gate activations.
const (
	GateForget = iota
	GateInput
	GateOutput
	GateCandidate
	NumGates
)

// Weights holds the parameters of one LSTM layer.
type Weights[T ragged.Floats] struct {
	// W is [NumGates*NO, NI+NO], applied to [x_t, h_{t-1}].
	W []T
	// B is [NumGates*NO].
	B []T

	NI, NO int
}

// NewWeights returns zeroed weights for nI inputs and nO hidden units.
func NewWeights[T ragged.Floats](nI, nO int) Weights[T] {
	return Weights[T]{
		W:  make([]T, NumGates*nO*(nI+nO)),
		B:  make([]T, NumGates*nO),
		NI: nI,
		NO: nO,
	}
}

// InitWeights returns Glorot-uniform weights drawn from src with the forget
// gate bias set to 1.
func InitWeights[T ragged.Floats](src random.Source, nI, nO int) Weights[T] {
	w := NewWeights[T](nI, nO)
	random.GlorotUniform(src, w.W, nI+nO, NumGates*nO)
	for j := range nO {
		w.B[GateForget*nO+j] = 1
	}
	return w
}

// Validate checks that W and B match NI and NO.
func (w Weights[T]) Validate() error {
	if w.NI < 0 || w.NO <= 0 {
		return fmt.Errorf("lstm: invalid dimensions nI=%d nO=%d: %w", w.NI, w.NO, ragged.ErrShape)
	}
	if len(w.W) != NumGates*w.NO*(w.NI+w.NO) {
		return fmt.Errorf("lstm: W has %d values, want %d: %w", len(w.W), NumGates*w.NO*(w.NI+w.NO), ragged.ErrShape)
	}
	if len(w.B) != NumGates*w.NO {
		return fmt.Errorf("lstm: B has %d values, want %d: %w", len(w.B), NumGates*w.NO, ragged.ErrShape)
	}
	return nil
}

// ZeroGrad returns zeroed buffers shaped like w, for accumulating gradients.
func (w Weights[T]) ZeroGrad() Weights[T] {
	return NewWeights[T](w.NI, w.NO)
}
