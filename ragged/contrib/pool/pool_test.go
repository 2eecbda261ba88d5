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

package pool

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// x holds three segments of lengths 2, 0 and 3 with dim 2.
var (
	testLengths = []int{2, 0, 3}
	testX       = []float64{
		1, 8,
		3, 2,
		-1, 0,
		5, -4,
		2, 7,
	}
)

func TestSumPool(t *testing.T) {
	got, err := SumPool(testX, testLengths, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{4, 10, 0, 0, 6, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SumPool mismatch (-want +got):\n%s", diff)
	}
}

func TestMeanAndMaxPool(t *testing.T) {
	lengths := []int{2, 3}

	mean, err := MeanPool(testX, lengths, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{2, 5, 2, 1}, mean, approx); diff != "" {
		t.Errorf("MeanPool mismatch (-want +got):\n%s", diff)
	}

	maxes, which, err := MaxPool(testX, lengths, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{3, 8, 5, 7}, maxes); diff != "" {
		t.Errorf("MaxPool mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 0, 1, 2}, which); diff != "" {
		t.Errorf("MaxPool which mismatch (-want +got):\n%s", diff)
	}

	dX, err := BackpropMaxPool([]float64{10, 20, 30, 40}, which, lengths, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		0, 20,
		10, 0,
		0, 0,
		30, 0,
		0, 40,
	}
	if diff := cmp.Diff(want, dX); diff != "" {
		t.Errorf("BackpropMaxPool mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxPoolTiesPickFirstRow(t *testing.T) {
	_, which, err := MaxPool([]float32{2, 2, 2}, []int{3}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if which[0] != 0 {
		t.Errorf("which = %v, want [0]", which)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"mean empty segment", func() error { _, err := MeanPool(testX, testLengths, 2); return err }, ragged.ErrEmptySegment},
		{"max empty segment", func() error { _, _, err := MaxPool(testX, testLengths, 2); return err }, ragged.ErrEmptySegment},
		{"backprop mean empty segment", func() error {
			_, err := BackpropMeanPool([]float64{1, 1, 1, 1, 1, 1}, testLengths, 2)
			return err
		}, ragged.ErrEmptySegment},
		{"lengths do not sum to rows", func() error { _, err := SumPool(testX, []int{1, 1}, 2); return err }, ragged.ErrShape},
		{"ragged rows", func() error { _, err := SumPool(testX[:9], []int{9}, 2); return err }, ragged.ErrShape},
		{"zero dim", func() error { _, err := SumPool(testX, []int{5}, 0); return err }, ragged.ErrShape},
		{"negative length", func() error { _, err := SumPool(testX, []int{6, -1}, 2); return err }, ragged.ErrShape},
		{"gradient shape", func() error { _, err := BackpropSumPool([]float64{1, 2, 3}, []int{1, 1}, 2); return err }, ragged.ErrShape},
		{"which out of range", func() error {
			_, err := BackpropMaxPool([]float64{1}, []int{2}, []int{2}, 1)
			return err
		}, ragged.ErrShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func randomBatch(rng *rand.Rand, lengths []int, dim int) []float64 {
	rows := 0
	for _, n := range lengths {
		rows += n
	}
	x := make([]float64, rows*dim)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// TestSumMeanAdjoint checks <pool(X), G> == <X, backprop(G)>, which holds
// exactly when the backward kernel is the transpose of the reduction.
func TestSumMeanAdjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	lengths := []int{3, 1, 4, 2}
	const dim = 5
	x := randomBatch(rng, lengths, dim)
	g := randomBatch(rng, []int{len(lengths)}, dim)

	sum, _ := SumPool(x, lengths, dim)
	dSum, _ := BackpropSumPool(g, lengths, dim)
	if diff := cmp.Diff(dot(sum, g), dot(x, dSum), approx); diff != "" {
		t.Errorf("sum pool adjoint mismatch:\n%s", diff)
	}

	mean, _ := MeanPool(x, lengths, dim)
	dMean, _ := BackpropMeanPool(g, lengths, dim)
	if diff := cmp.Diff(dot(mean, g), dot(x, dMean), approx); diff != "" {
		t.Errorf("mean pool adjoint mismatch:\n%s", diff)
	}

	// Summing the broadcast gradient over a segment gives the pooled
	// gradient times the segment length.
	back, _ := SumPool(dSum, lengths, dim)
	for s, n := range lengths {
		for f := range dim {
			if diff := cmp.Diff(g[s*dim+f]*float64(n), back[s*dim+f], approx); diff != "" {
				t.Errorf("segment %d col %d: %s", s, f, diff)
			}
		}
	}
}

func TestMaxPoolFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	lengths := []int{2, 3, 1}
	const dim = 3
	x := randomBatch(rng, lengths, dim)
	g := randomBatch(rng, []int{len(lengths)}, dim)

	_, which, err := MaxPool(x, lengths, dim)
	if err != nil {
		t.Fatal(err)
	}
	dX, err := BackpropMaxPool(g, which, lengths, dim)
	if err != nil {
		t.Fatal(err)
	}

	const h = 1e-6
	for i := range x {
		orig := x[i]
		x[i] = orig + h
		up, _, _ := MaxPool(x, lengths, dim)
		x[i] = orig - h
		down, _, _ := MaxPool(x, lengths, dim)
		x[i] = orig
		numeric := (dot(up, g) - dot(down, g)) / (2 * h)
		if diff := cmp.Diff(numeric, dX[i], cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("dX[%d]: %s", i, diff)
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(15, 16))
	lengths := make([]int, 300)
	for i := range lengths {
		lengths[i] = 1 + rng.IntN(20)
	}
	const dim = 8
	x := randomBatch(rng, lengths, dim)
	g := randomBatch(rng, []int{len(lengths)}, dim)

	p := workerpool.New(4)
	defer p.Close()

	seqSum, _ := SumPool(x, lengths, dim)
	parSum, _ := ParallelSumPool(p, x, lengths, dim)
	if diff := cmp.Diff(seqSum, parSum); diff != "" {
		t.Errorf("ParallelSumPool mismatch:\n%s", diff)
	}
	seqMean, _ := MeanPool(x, lengths, dim)
	parMean, _ := ParallelMeanPool(p, x, lengths, dim)
	if diff := cmp.Diff(seqMean, parMean); diff != "" {
		t.Errorf("ParallelMeanPool mismatch:\n%s", diff)
	}
	seqMax, seqWhich, _ := MaxPool(x, lengths, dim)
	parMax, parWhich, _ := ParallelMaxPool(p, x, lengths, dim)
	if diff := cmp.Diff(seqMax, parMax); diff != "" {
		t.Errorf("ParallelMaxPool mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(seqWhich, parWhich); diff != "" {
		t.Errorf("ParallelMaxPool which mismatch:\n%s", diff)
	}

	seqD, _ := BackpropMaxPool(g, seqWhich, lengths, dim)
	parD, _ := ParallelBackpropMaxPool(p, g, parWhich, lengths, dim)
	if diff := cmp.Diff(seqD, parD); diff != "" {
		t.Errorf("ParallelBackpropMaxPool mismatch:\n%s", diff)
	}
	seqD, _ = BackpropMeanPool(g, lengths, dim)
	parD, _ = ParallelBackpropMeanPool(p, g, lengths, dim)
	if diff := cmp.Diff(seqD, parD); diff != "" {
		t.Errorf("ParallelBackpropMeanPool mismatch:\n%s", diff)
	}
}

func BenchmarkSumPool(b *testing.B) {
	rng := rand.New(rand.NewPCG(17, 18))
	lengths := make([]int, 512)
	for i := range lengths {
		lengths[i] = 1 + rng.IntN(64)
	}
	const dim = 64
	x := randomBatch(rng, lengths, dim)
	b.ResetTimer()
	for range b.N {
		if _, err := SumPool(x, lengths, dim); err != nil {
			b.Fatal(err)
		}
	}
}
