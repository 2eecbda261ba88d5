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

// Package optim provides the parameter-update kernels an external optimizer
// drives: a simplified Adam step, weight averaging and gradient clipping.
// All kernels update caller-owned buffers in place.
package optim

import (
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/linalg"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
)

// MinParallelUpdate is the parameter count below which ParallelAdam runs on
// the calling goroutine.
const MinParallelUpdate = 1 << 15

// AdamConfig holds the hyperparameters of one Adam step. LearnRate already
// includes any external schedule; ModRate scales it further.
type AdamConfig struct {
	Beta1, Beta2 float64
	Eps          float64
	LearnRate    float64
	ModRate      float64
}

// DefaultAdamConfig returns the usual Adam hyperparameters with ModRate 1.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		Beta1:     0.9,
		Beta2:     0.999,
		Eps:       1e-8,
		LearnRate: 0.001,
		ModRate:   1,
	}
}

// Adam updates the moment estimates and the weights:
//
//	mom1 = beta1*mom1 + (1-beta1)*g
//	mom2 = beta2*mom2 + (1-beta2)*g*g
//	w   -= LearnRate*ModRate * mom1 / (1 + eps)
//
// The step uses neither bias correction nor the square root of mom2; mom2
// is maintained for callers that derive a schedule from it.
func Adam[T ragged.Floats](weights, gradient, mom1, mom2 []T, cfg AdamConfig) {
	n := len(weights)
	if len(gradient) < n || len(mom1) < n || len(mom2) < n {
		panic("optim: adam buffers too short")
	}
	adam(weights[:n], gradient[:n], mom1[:n], mom2[:n], cfg)
}

func adam[T ragged.Floats](weights, gradient, mom1, mom2 []T, cfg AdamConfig) {
	b1, b2 := T(cfg.Beta1), T(cfg.Beta2)
	step := T(cfg.LearnRate * cfg.ModRate / (1 + cfg.Eps))
	for i, g := range gradient {
		mom1[i] = mom1[i]*b1 + g*(1-b1)
		mom2[i] = mom2[i]*b2 + g*g*(1-b2)
		weights[i] -= step * mom1[i]
	}
}

// ParallelAdam is Adam with the parameters split across pool workers.
func ParallelAdam[T ragged.Floats](pool *workerpool.Pool, weights, gradient, mom1, mom2 []T, cfg AdamConfig) {
	n := len(weights)
	if len(gradient) < n || len(mom1) < n || len(mom2) < n {
		panic("optim: adam buffers too short")
	}
	if pool == nil || n < MinParallelUpdate {
		adam(weights, gradient[:n], mom1[:n], mom2[:n], cfg)
		return
	}
	pool.ParallelFor(n, func(start, end int) {
		adam(weights[start:end], gradient[start:end], mom1[start:end], mom2[start:end], cfg)
	})
}

// DefaultMaxDecay caps EMADecay.
const DefaultMaxDecay = 0.9999

// EMADecay returns the averaging decay for step t: (1+t)/(10+t), capped at
// maxDecay. It starts at 0.1 and approaches 1 as training proceeds.
func EMADecay(t int, maxDecay float64) float64 {
	return min((1+float64(t))/(10+float64(t)), maxDecay)
}

// ApplyAverage moves ema towards weights: ema -= (1-decay)*(ema-weights).
func ApplyAverage[T ragged.Floats](ema, weights []T, decay float64) {
	if len(weights) < len(ema) {
		panic("optim: weights slice too short")
	}
	k := T(1 - decay)
	for i := range ema {
		ema[i] -= k * (ema[i] - weights[i])
	}
}

// UpdateAverages applies ApplyAverage with the EMADecay schedule for step t.
func UpdateAverages[T ragged.Floats](ema, weights []T, t int, maxDecay float64) {
	ApplyAverage(ema, weights, EMADecay(t, maxDecay))
}

// ClipGradient rescales gradient in place so that its L2 norm does not
// exceed threshold, and returns the norm before clipping.
func ClipGradient[T ragged.Floats](gradient []T, threshold T) T {
	norm := linalg.Nrm2(gradient)
	if norm >= threshold && norm > 0 {
		linalg.ScaleInPlace(threshold/norm, gradient)
	}
	return norm
}
