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
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/activation"
	"github.com/ajroetker/go-ragged/ragged/contrib/linalg"
)

// StepCache is the forward state of one step that BackpropStep consumes.
// All slices are row-major over the same batch rows.
type StepCache[T ragged.Floats] struct {
	X     []T // [batch, NI]
	HPrev []T // [batch, NO]
	CPrev []T // [batch, NO]
	C     []T // [batch, NO], the new cell state
	Gates []T // [batch, NumGates*NO], post-nonlinearity
}

// scratch holds the per-step temporaries of the recurrence. It is sized
// once for the widest step and reused, so the recurrence allocates nothing
// per step.
type scratch[T ragged.Floats] struct {
	xh  []T // [batch, NI+NO]
	dA  []T // [batch, NumGates*NO]
	dXH []T // [batch, NI+NO]
}

func newScratch[T ragged.Floats](batch, nI, nO int) *scratch[T] {
	return &scratch[T]{
		xh:  make([]T, batch*(nI+nO)),
		dA:  make([]T, batch*NumGates*nO),
		dXH: make([]T, batch*(nI+nO)),
	}
}

// concat writes [x, h] row by row into xh.
func concat[T ragged.Floats](xh, x, h []T, batch, nI, nO int) {
	width := nI + nO
	for b := range batch {
		copy(xh[b*width:b*width+nI], x[b*nI:(b+1)*nI])
		copy(xh[b*width+nI:(b+1)*width], h[b*nO:(b+1)*nO])
	}
}

func checkStep[T ragged.Floats](w Weights[T], x, hPrev, cPrev, hOut, cOut, gates []T, batch int) {
	nI, nO := w.NI, w.NO
	if len(w.W) < NumGates*nO*(nI+nO) || len(w.B) < NumGates*nO {
		panic("lstm: weights too short")
	}
	if len(x) < batch*nI {
		panic("lstm: x slice too short")
	}
	if len(hPrev) < batch*nO || len(cPrev) < batch*nO {
		panic("lstm: previous state too short")
	}
	if len(hOut) < batch*nO || len(cOut) < batch*nO {
		panic("lstm: output state too short")
	}
	if len(gates) < batch*NumGates*nO {
		panic("lstm: gates slice too short")
	}
}

// Step runs the cell on batch rows: it writes the new hidden and cell
// states to hOut and cOut, and the post-nonlinearity gates to gates.
func Step[T ragged.Floats](w Weights[T], x, hPrev, cPrev, hOut, cOut, gates []T, batch int) {
	checkStep(w, x, hPrev, cPrev, hOut, cOut, gates, batch)
	step(w, x, hPrev, cPrev, hOut, cOut, gates, batch, make([]T, batch*(w.NI+w.NO)))
}

func step[T ragged.Floats](w Weights[T], x, hPrev, cPrev, hOut, cOut, gates []T, batch int, xh []T) {
	nI, nO := w.NI, w.NO
	width := NumGates * nO
	concat(xh, x, hPrev, batch, nI, nO)
	linalg.Affine(xh, w.W, w.B, gates, batch, nI+nO, width)

	for b := range batch {
		row := gates[b*width : (b+1)*width]
		activation.Sigmoid(row[:GateCandidate*nO], row[:GateCandidate*nO])
		activation.Tanh(row[GateCandidate*nO:], row[GateCandidate*nO:])

		f := row[GateForget*nO : (GateForget+1)*nO]
		in := row[GateInput*nO : (GateInput+1)*nO]
		o := row[GateOutput*nO : (GateOutput+1)*nO]
		g := row[GateCandidate*nO:]
		cp := cPrev[b*nO : (b+1)*nO]
		c := cOut[b*nO : (b+1)*nO]
		h := hOut[b*nO : (b+1)*nO]
		for j := range nO {
			c[j] = f[j]*cp[j] + in[j]*g[j]
		}
		activation.Tanh(c, h)
		for j := range nO {
			h[j] *= o[j]
		}
	}
}

// BackpropStep computes the gradients of one Step given dH and dC, the
// gradients with respect to its hidden and cell outputs (dC already
// including whatever is carried from the following step).
//
// It accumulates weight and bias gradients into grads, overwrites dX with
// the input gradient and writes the gradients of the previous hidden and
// cell states to dHPrev and dCPrev. dX and dHPrev may be nil.
func BackpropStep[T ragged.Floats](w Weights[T], grads Weights[T], cache StepCache[T], dH, dC, dX, dHPrev, dCPrev []T, batch int) {
	nI, nO := w.NI, w.NO
	checkStep(w, cache.X, cache.HPrev, cache.CPrev, cache.C, cache.C, cache.Gates, batch)
	if len(grads.W) < len(w.W) || len(grads.B) < len(w.B) {
		panic("lstm: gradient buffers too short")
	}
	if len(dH) < batch*nO || len(dC) < batch*nO || len(dCPrev) < batch*nO {
		panic("lstm: state gradient too short")
	}
	if (dX != nil && len(dX) < batch*nI) || (dHPrev != nil && len(dHPrev) < batch*nO) {
		panic("lstm: input gradient too short")
	}
	backpropStep(w, grads, cache, dH, dC, dX, dHPrev, dCPrev, batch, newScratch[T](batch, nI, nO))
}

func backpropStep[T ragged.Floats](w Weights[T], grads Weights[T], cache StepCache[T], dH, dC, dX, dHPrev, dCPrev []T, batch int, s *scratch[T]) {
	nI, nO := w.NI, w.NO
	width := NumGates * nO
	dA := s.dA[:batch*width]

	for b := range batch {
		row := cache.Gates[b*width : (b+1)*width]
		dRow := dA[b*width : (b+1)*width]
		f := row[GateForget*nO : (GateForget+1)*nO]
		in := row[GateInput*nO : (GateInput+1)*nO]
		o := row[GateOutput*nO : (GateOutput+1)*nO]
		g := row[GateCandidate*nO:]
		cp := cache.CPrev[b*nO : (b+1)*nO]
		c := cache.C[b*nO : (b+1)*nO]
		dh := dH[b*nO : (b+1)*nO]
		dcIn := dC[b*nO : (b+1)*nO]
		dcOut := dCPrev[b*nO : (b+1)*nO]

		// tanh(c) goes into the output-gate slot first and is overwritten
		// below once it has been consumed.
		tc := dRow[GateOutput*nO : (GateOutput+1)*nO]
		activation.Tanh(c, tc)
		for j := range nO {
			dc := dcIn[j] + dh[j]*o[j]*(1-tc[j]*tc[j])
			dRow[GateForget*nO+j] = dc * cp[j] * f[j] * (1 - f[j])
			dRow[GateInput*nO+j] = dc * g[j] * in[j] * (1 - in[j])
			dRow[GateOutput*nO+j] = dh[j] * tc[j] * o[j] * (1 - o[j])
			dRow[GateCandidate*nO+j] = dc * in[j] * (1 - g[j]*g[j])
			dcOut[j] = dc * f[j]
		}
	}

	xh := s.xh[:batch*(nI+nO)]
	dXH := s.dXH[:batch*(nI+nO)]
	concat(xh, cache.X, cache.HPrev, batch, nI, nO)
	linalg.BackpropAffine(dA, xh, w.W, dXH, grads.W, grads.B, batch, nI+nO, width)

	for b := range batch {
		src := dXH[b*(nI+nO) : (b+1)*(nI+nO)]
		if dX != nil {
			copy(dX[b*nI:(b+1)*nI], src[:nI])
		}
		if dHPrev != nil {
			copy(dHPrev[b*nO:(b+1)*nO], src[nI:])
		}
	}
}
