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

package optim

import (
	stdmath "math"
	"testing"

	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestAdamOneStep(t *testing.T) {
	cfg := AdamConfig{Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, LearnRate: 0.1, ModRate: 0.5}
	w := []float64{1, -2}
	g := []float64{2, 0.5}
	m1 := []float64{0, 1}
	m2 := []float64{0, 4}

	wantM1 := []float64{0.9*0 + 0.1*2, 0.9*1 + 0.1*0.5}
	wantM2 := []float64{0.999*0 + 0.001*4, 0.999*4 + 0.001*0.25}
	wantW := []float64{
		1 - 0.05*wantM1[0]/(1+1e-8),
		-2 - 0.05*wantM1[1]/(1+1e-8),
	}

	Adam(w, g, m1, m2, cfg)
	approx := cmpopts.EquateApprox(0, 1e-12)
	if diff := cmp.Diff(wantM1, m1, approx); diff != "" {
		t.Errorf("mom1 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantM2, m2, approx); diff != "" {
		t.Errorf("mom2 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantW, w, approx); diff != "" {
		t.Errorf("weights (-want +got):\n%s", diff)
	}
}

func TestAdamPanicsOnShortBuffers(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Adam([]float32{1, 2}, []float32{1}, []float32{0, 0}, []float32{0, 0}, DefaultAdamConfig())
}

func TestParallelAdamMatchesSequential(t *testing.T) {
	const n = MinParallelUpdate + 123
	mk := func() ([]float32, []float32, []float32, []float32) {
		w := make([]float32, n)
		g := make([]float32, n)
		for i := range w {
			w[i] = float32(i%17) * 0.1
			g[i] = float32(i%5) - 2
		}
		return w, g, make([]float32, n), make([]float32, n)
	}
	cfg := DefaultAdamConfig()

	w1, g1, a1, b1 := mk()
	Adam(w1, g1, a1, b1, cfg)

	pool := workerpool.New(4)
	defer pool.Close()
	w2, g2, a2, b2 := mk()
	ParallelAdam(pool, w2, g2, a2, b2, cfg)

	if diff := cmp.Diff(w1, w2); diff != "" {
		t.Errorf("weights differ:\n%s", diff)
	}
	if diff := cmp.Diff(b1, b2); diff != "" {
		t.Errorf("mom2 differs:\n%s", diff)
	}
}

func TestEMADecay(t *testing.T) {
	tests := []struct {
		t        int
		maxDecay float64
		want     float64
	}{
		{0, DefaultMaxDecay, 0.1},
		{10, DefaultMaxDecay, 11.0 / 20.0},
		{1000000, DefaultMaxDecay, DefaultMaxDecay},
		{90, 0.5, 0.5},
	}
	for _, tt := range tests {
		if got := EMADecay(tt.t, tt.maxDecay); stdmath.Abs(got-tt.want) > 1e-12 {
			t.Errorf("EMADecay(%d, %v) = %v, want %v", tt.t, tt.maxDecay, got, tt.want)
		}
	}
}

func TestUpdateAverages(t *testing.T) {
	ema := []float64{0, 10}
	w := []float64{1, 0}
	UpdateAverages(ema, w, 0, DefaultMaxDecay)
	// decay 0.1: ema moves 90% of the way to the weights.
	if diff := cmp.Diff([]float64{0.9, 1}, ema, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("ema (-want +got):\n%s", diff)
	}
}

func TestClipGradient(t *testing.T) {
	g := []float64{3, 4}
	if norm := ClipGradient(g, 1); norm != 5 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if diff := cmp.Diff([]float64{0.6, 0.8}, g, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("clipped (-want +got):\n%s", diff)
	}

	small := []float64{0.3, 0.4}
	ClipGradient(small, 1)
	if diff := cmp.Diff([]float64{0.3, 0.4}, small); diff != "" {
		t.Errorf("gradient under threshold was changed:\n%s", diff)
	}

	zero := []float64{0, 0}
	ClipGradient(zero, 0)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero gradient = %v", zero)
	}
}
