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

package loss

import (
	"errors"
	stdmath "math"
	"testing"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	x := []float64{
		1, 0,
		1, 1,
		0, 0,
	}
	y := []float64{
		2, 0,
		-1, -1,
		0, 0,
	}
	cos, err := Cosine(x, y, 2)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, -1, 1}, cos, 1e-6)
	for _, c := range cos {
		require.False(t, stdmath.IsNaN(c))
	}
}

func TestCosineAbsLoss(t *testing.T) {
	x := []float32{
		1, 0,
		0, 1,
		3, 4,
	}
	y := []float32{
		1, 0,
		1, 0,
		0, 0,
	}
	total, err := CosineAbsLoss(x, y, 2, false)
	require.NoError(t, err)
	// Row 1 is orthogonal; row 2 compares against the epsilon vector.
	want := 1 + stdmath.Abs((3+4)/(5*stdmath.Sqrt2)-1)
	require.InDelta(t, want, float64(total), 1e-4)

	ignored, err := CosineAbsLoss(x, y, 2, true)
	require.NoError(t, err)
	require.InDelta(t, 1.0, float64(ignored), 1e-4)
}

func TestLogloss(t *testing.T) {
	yTrue := []float64{1, 0, 1, 0}
	yPred := []float64{0.9, 0.2, 0, 1}
	out := make([]float64, 4)
	Logloss(yTrue, yPred, out)
	require.InDelta(t, -stdmath.Log(0.9+Epsilon), out[0], 1e-12)
	require.InDelta(t, -stdmath.Log(0.8+Epsilon), out[1], 1e-12)
	require.InDelta(t, -stdmath.Log(Epsilon), out[2], 1e-9)
	require.InDelta(t, -stdmath.Log(Epsilon), out[3], 1e-9)
}

func TestNorms(t *testing.T) {
	norms, err := Norms([]float64{3, 4, 0, 0, 1, 0}, 2)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{5, 1, 1}, norms, 1e-12)
}

func TestShapeErrors(t *testing.T) {
	_, err := Cosine([]float64{1, 2, 3}, []float64{1, 2, 3}, 2)
	require.True(t, errors.Is(err, ragged.ErrShape))
	_, err = Cosine([]float64{1, 2}, []float64{1}, 2)
	require.ErrorIs(t, err, ragged.ErrShape)
	_, err = Norms([]float64{1}, 0)
	require.ErrorIs(t, err, ragged.ErrShape)
}
