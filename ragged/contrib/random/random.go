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

// Package random supplies the randomness used for weight initialization and
// shuffling. Kernels never hold their own generator: callers pass a Source,
// and Default returns a fresh generator with a fixed seed so runs are
// reproducible unless a caller opts out.
package random

import (
	stdmath "math"

	"github.com/ajroetker/go-ragged/ragged"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSeed seeds the generator returned by Default.
const DefaultSeed uint64 = 0

// Source is a seedable stream of uniformly distributed 64-bit values.
type Source interface {
	Uint64() uint64
	Seed(seed uint64)
}

// New returns a PCG source seeded with seed.
func New(seed uint64) Source {
	return rand.NewSource(seed)
}

// Default returns a new source seeded with DefaultSeed.
func Default() Source {
	return New(DefaultSeed)
}

// Shuffle permutes s in place.
func Shuffle[E any](src Source, s []E) {
	rand.New(src).Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

// Permutation returns a random permutation of [0, n).
func Permutation(src Source, n int) []int {
	return rand.New(src).Perm(n)
}

// IntN returns a uniform integer in [0, n).
func IntN(src Source, n int) int {
	return rand.New(src).Intn(n)
}

// Uniform fills out with samples from U[low, high).
func Uniform[T ragged.Floats](src Source, out []T, low, high T) {
	d := distuv.Uniform{Min: float64(low), Max: float64(high), Src: src}
	for i := range out {
		out[i] = T(d.Rand())
	}
}

// Normal fills out with samples from N(mean, std^2).
func Normal[T ragged.Floats](src Source, out []T, mean, std T) {
	d := distuv.Normal{Mu: float64(mean), Sigma: float64(std), Src: src}
	for i := range out {
		out[i] = T(d.Rand())
	}
}

// GlorotUniform fills a [fanOut, fanIn] weight matrix with samples from
// U[-limit, limit), limit = sqrt(6 / (fanIn + fanOut)).
func GlorotUniform[T ragged.Floats](src Source, out []T, fanIn, fanOut int) {
	if fanIn+fanOut <= 0 {
		clear(out)
		return
	}
	limit := T(stdmath.Sqrt(6 / float64(fanIn+fanOut)))
	Uniform(src, out, -limit, limit)
}
