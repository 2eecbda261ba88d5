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

package lstm

import (
	"fmt"

	"github.com/ajroetker/go-ragged/ragged"
)

// Sequence is the forward state of a recurrence over a time-major batch,
// kept for Backward.
type Sequence[T ragged.Floats] struct {
	MaxLen, Batch, NO int
	SizeAtT           []int

	// Hiddens and Cells are [MaxLen+1, Batch, NO]; step 0 is the initial
	// state and step t+1 the state after input t. Rows at or beyond
	// SizeAtT[t] of step t+1 are zero.
	Hiddens []T
	Cells   []T
	// Gates is [MaxLen, Batch, NumGates*NO].
	Gates []T
}

// Outputs returns the hidden states after every input step as a
// [MaxLen, Batch, NO] view.
func (s *Sequence[T]) Outputs() []T {
	return s.Hiddens[s.Batch*s.NO:]
}

// Hidden returns the [Batch, NO] hidden state after input step t.
func (s *Sequence[T]) Hidden(t int) []T {
	n := s.Batch * s.NO
	return s.Hiddens[(t+1)*n : (t+2)*n]
}

// Cell returns the [Batch, NO] cell state after input step t.
func (s *Sequence[T]) Cell(t int) []T {
	n := s.Batch * s.NO
	return s.Cells[(t+1)*n : (t+2)*n]
}

// checkSizeAtT validates sizeAtT for a batch of the given width.
func checkSizeAtT(sizeAtT []int, batch int) error {
	prev := batch
	for t, n := range sizeAtT {
		if n < 0 || n > prev {
			return fmt.Errorf("lstm: size_at_t[%d] = %d, must be non-increasing within [0, %d]: %w",
				t, n, batch, ragged.ErrShape)
		}
		prev = n
	}
	return nil
}

// initialState copies an initial state into dst. A nil state leaves dst
// zero, a state of nO values is broadcast to every row, and a state of
// batch*nO values is copied as is.
func initialState[T ragged.Floats](dst, state []T, batch, nO int, name string) error {
	switch len(state) {
	case 0:
	case nO:
		for b := range batch {
			copy(dst[b*nO:(b+1)*nO], state)
		}
	case batch * nO:
		copy(dst, state)
	default:
		return fmt.Errorf("lstm: %s has %d values, want %d or %d: %w", name, len(state), nO, batch*nO, ragged.ErrShape)
	}
	return nil
}

// Forward runs the recurrence over x, a [len(sizeAtT), batch, NI] time-major
// buffer. At step t only the first sizeAtT[t] rows are computed. h0 and c0
// are the initial states (see initialState for the accepted shapes).
func Forward[T ragged.Floats](w Weights[T], x []T, sizeAtT []int, batch int, h0, c0 []T) (*Sequence[T], error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	maxLen, nI, nO := len(sizeAtT), w.NI, w.NO
	if batch < 0 || len(x) != maxLen*batch*nI {
		return nil, fmt.Errorf("lstm: x has %d values, want %d*%d*%d: %w", len(x), maxLen, batch, nI, ragged.ErrShape)
	}
	if err := checkSizeAtT(sizeAtT, batch); err != nil {
		return nil, err
	}

	seq := &Sequence[T]{
		MaxLen:  maxLen,
		Batch:   batch,
		NO:      nO,
		SizeAtT: sizeAtT,
		Hiddens: make([]T, (maxLen+1)*batch*nO),
		Cells:   make([]T, (maxLen+1)*batch*nO),
		Gates:   make([]T, maxLen*batch*NumGates*nO),
	}
	if err := initialState(seq.Hiddens[:batch*nO], h0, batch, nO, "h0"); err != nil {
		return nil, err
	}
	if err := initialState(seq.Cells[:batch*nO], c0, batch, nO, "c0"); err != nil {
		return nil, err
	}

	xh := make([]T, batch*(nI+nO))
	state := batch * nO
	for t, n := range sizeAtT {
		step(w,
			x[t*batch*nI:],
			seq.Hiddens[t*state:], seq.Cells[t*state:],
			seq.Hiddens[(t+1)*state:], seq.Cells[(t+1)*state:],
			seq.Gates[t*batch*NumGates*nO:],
			n, xh)
	}
	return seq, nil
}

// ForwardPadded runs Forward over a packed batch.
func ForwardPadded[T ragged.Floats](w Weights[T], p ragged.Padded[T], h0, c0 []T) (*Sequence[T], error) {
	if p.Dim != w.NI && p.Batch > 0 {
		return nil, fmt.Errorf("lstm: batch has feature dim %d, weights expect %d: %w", p.Dim, w.NI, ragged.ErrShape)
	}
	return Forward(w, p.Data, p.SizeAtT, p.Batch, h0, c0)
}

// Gradients is the result of Backward.
type Gradients[T ragged.Floats] struct {
	// DX is [MaxLen, Batch, NI]; rows beyond SizeAtT[t] are zero.
	DX []T
	// Params accumulates the weight and bias gradients.
	Params Weights[T]
	// DH0 and DC0 are the [Batch, NO] gradients of the initial state. They
	// are nil unless BackwardOptions.InitialStateGrads is set.
	DH0, DC0 []T
}

// BackwardOptions configures Backward.
type BackwardOptions struct {
	// InitialStateGrads requests DH0 and DC0.
	InitialStateGrads bool
}

// Backward computes the gradients of a Forward recurrence. dY is the
// [MaxLen, Batch, NO] gradient with respect to Outputs; dCells, which may
// be nil, is an additional gradient with respect to every step's cell
// state in the same layout.
//
// Steps are visited in reverse, each narrowed to its SizeAtT rows, with the
// hidden and cell gradients of step t carried into step t-1.
func Backward[T ragged.Floats](w Weights[T], seq *Sequence[T], x, dY, dCells []T, opts BackwardOptions) (*Gradients[T], error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	maxLen, batch, nI, nO := seq.MaxLen, seq.Batch, w.NI, w.NO
	if seq.NO != nO {
		return nil, fmt.Errorf("lstm: sequence has %d hidden units, weights have %d: %w", seq.NO, nO, ragged.ErrShape)
	}
	state := batch * nO
	if len(x) != maxLen*batch*nI {
		return nil, fmt.Errorf("lstm: x has %d values, want %d: %w", len(x), maxLen*batch*nI, ragged.ErrShape)
	}
	if len(dY) != maxLen*state {
		return nil, fmt.Errorf("lstm: dY has %d values, want %d: %w", len(dY), maxLen*state, ragged.ErrShape)
	}
	if dCells != nil && len(dCells) != maxLen*state {
		return nil, fmt.Errorf("lstm: dCells has %d values, want %d: %w", len(dCells), maxLen*state, ragged.ErrShape)
	}

	grads := &Gradients[T]{
		DX:     make([]T, len(x)),
		Params: w.ZeroGrad(),
	}
	s := newScratch[T](batch, nI, nO)
	dH := make([]T, state)
	dC := make([]T, state)
	dHCarry := make([]T, state)
	dCCarry := make([]T, state)
	width := NumGates * nO

	for t := maxLen - 1; t >= 0; t-- {
		n := seq.SizeAtT[t]
		if n == 0 {
			continue
		}
		rows := n * nO
		for i := range rows {
			dH[i] = dY[t*state+i] + dHCarry[i]
			dC[i] = dCCarry[i]
			if dCells != nil {
				dC[i] += dCells[t*state+i]
			}
		}
		cache := StepCache[T]{
			X:     x[t*batch*nI : t*batch*nI+n*nI],
			HPrev: seq.Hiddens[t*state : t*state+rows],
			CPrev: seq.Cells[t*state : t*state+rows],
			C:     seq.Cells[(t+1)*state : (t+1)*state+rows],
			Gates: seq.Gates[t*batch*width : t*batch*width+n*width],
		}
		backpropStep(w, grads.Params, cache, dH, dC,
			grads.DX[t*batch*nI:], dHCarry, dCCarry, n, s)
	}

	if opts.InitialStateGrads {
		grads.DH0 = dHCarry
		grads.DC0 = dCCarry
	}
	return grads, nil
}
