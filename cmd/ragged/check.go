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

package main

import (
	"context"
	"fmt"
	"log/slog"
	stdmath "math"
	"sync"

	"github.com/spf13/cobra"
	"github.com/x448/float16"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/backend"
	"github.com/ajroetker/go-ragged/ragged/contrib/lstm"
	"github.com/ajroetker/go-ragged/ragged/contrib/random"
)

// selfCheck measures one property of a backend on a batch and returns its
// relative error.
type selfCheck[T ragged.Floats] struct {
	name string
	tol  float64
	run  func(ops backend.Ops[T], b batch[T], src random.Source) (float64, error)
}

func newCheckCmd() *cobra.Command {
	var (
		bf    backendFlags
		shape shapeFlags
		half  bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run round-trip and adjoint self-checks on random batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := shape.validate(); err != nil {
				return err
			}
			if err := bf.checkDType(); err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr())
			if bf.dtype == "float64" {
				return runChecks[float64](cmd, &bf, shape, half, logger)
			}
			return runChecks[float32](cmd, &bf, shape, half, logger)
		},
	}
	bf.register(cmd.Flags())
	registerShapeFlags(cmd, &shape)
	cmd.Flags().BoolVar(&half, "half", false, "Round inputs to float16 and check the half-precision round trip")
	return cmd
}

func registerShapeFlags(cmd *cobra.Command, s *shapeFlags) {
	fs := cmd.Flags()
	fs.IntVar(&s.batches, "batches", 8, "Number of random batches")
	fs.IntVar(&s.seqs, "seqs", 16, "Sequences per batch")
	fs.IntVar(&s.maxLen, "max-len", 12, "Maximum sequence length")
	fs.IntVar(&s.dim, "dim", 8, "Feature dimension")
	fs.IntVar(&s.hidden, "hidden", 4, "LSTM hidden units")
	fs.Uint64Var(&s.seed, "seed", random.DefaultSeed, "Seed of the first batch")
	fs.IntVar(&s.jobs, "jobs", 0, "Batches processed concurrently (0 for no limit)")
}

func runChecks[T ragged.Floats](cmd *cobra.Command, bf *backendFlags, shape shapeFlags, half bool, logger *slog.Logger) error {
	ops, err := openBackend[T](bf, logger)
	if err != nil {
		return err
	}
	defer ops.Close()

	checks := checksFor[T](shape, half)
	worst := make([]float64, len(checks))
	var mu sync.Mutex

	batches := newBatches[T](shape, half)
	err = backend.ForEachBatch(cmd.Context(), shape.jobs, batches, func(_ context.Context, i int, b batch[T]) error {
		src := random.New(shape.seed + uint64(len(batches)+i))
		for k, c := range checks {
			e, err := c.run(ops, b, src)
			if err != nil {
				return fmt.Errorf("batch %d: %s: %w", i, c.name, err)
			}
			logger.Debug("check", "batch", i, "name", c.name, "error", e)
			mu.Lock()
			worst[k] = max(worst[k], e)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), "CHECK", "MAX ERROR", "TOLERANCE", "STATUS")
	failed := 0
	for k, c := range checks {
		status := "ok"
		if !(worst[k] <= c.tol) {
			status = "FAIL"
			failed++
		}
		table.Append([]string{c.name, fmt.Sprintf("%.3g", worst[k]), fmt.Sprintf("%.0e", c.tol), status})
	}
	table.Render()
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

// epsilon is the tolerance of exact-arithmetic identities for T.
func epsilon[T ragged.Floats]() float64 {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return 1e-4
	}
	return 1e-10
}

func relErr(a, b float64) float64 {
	return stdmath.Abs(a-b) / max(1, stdmath.Abs(a), stdmath.Abs(b))
}

func maxDiff[T ragged.Floats](a, b []T) float64 {
	if len(a) != len(b) {
		return stdmath.Inf(1)
	}
	var m float64
	for i := range a {
		m = max(m, stdmath.Abs(float64(a[i])-float64(b[i])))
	}
	return m
}

// dot accumulates in float64 so that float32 identities are not swamped by
// summation error.
func dot[T ragged.Floats](a, b []T) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func noise[T ragged.Floats](src random.Source, shape ...int) ragged.Tensor[T] {
	t := ragged.New[T](shape...)
	random.Uniform(src, t.Data, -1, 1)
	return t
}

func checksFor[T ragged.Floats](shape shapeFlags, half bool) []selfCheck[T] {
	eps := epsilon[T]()
	checks := []selfCheck[T]{
		{"pack round trip", 0, checkPack[T]},
		{"flatten round trip", 0, checkFlatten[T]},
		{"seq2col adjoint", eps, checkSeq2Col[T]},
		{"sum pool adjoint", eps, checkSumPool[T]},
		{"mean pool adjoint", eps, checkMeanPool[T]},
		{"max pool gradient", eps, checkMaxPool[T]},
		{"sequence softmax", eps, checkSoftmaxSequences[T]},
		{"affine adjoint", eps, checkAffine[T]},
		{"lstm gradient", 1e3 * eps, func(ops backend.Ops[T], b batch[T], src random.Source) (float64, error) {
			return checkLSTM(ops, b, src, shape.hidden)
		}},
	}
	if half {
		checks = append(checks, selfCheck[T]{"half round trip", 0, checkHalf[T]})
	}
	return checks
}

func checkPack[T ragged.Floats](ops backend.Ops[T], b batch[T], _ random.Source) (float64, error) {
	p, err := ops.Pack(b.seqs)
	if err != nil {
		return 0, err
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	var worst float64
	for i, s := range ops.Unpack(p) {
		worst = max(worst, maxDiff(s.Data, b.seqs[i].Data))
	}
	return worst, nil
}

func checkFlatten[T ragged.Floats](ops backend.Ops[T], b batch[T], _ random.Source) (float64, error) {
	flat, lengths, err := ops.Flatten(b.seqs, 1)
	if err != nil {
		return 0, err
	}
	seqs, err := ops.Unflatten(flat, lengths, 1)
	if err != nil {
		return 0, err
	}
	var worst float64
	for i, s := range seqs {
		worst = max(worst, maxDiff(s.Data, b.seqs[i].Data))
	}
	return worst, nil
}

// checkSeq2Col compares <dcols, seq2col(x)> with <backprop(dcols), x>.
func checkSeq2Col[T ragged.Floats](ops backend.Ops[T], b batch[T], src random.Source) (float64, error) {
	cols, err := ops.Seq2Col(b.x, 1, b.lengths)
	if err != nil {
		return 0, err
	}
	dcols := noise[T](src, cols.Shape...)
	dx, err := ops.BackpropSeq2Col(dcols, 1, b.lengths)
	if err != nil {
		return 0, err
	}
	return relErr(dot(dcols.Data, cols.Data), dot(dx.Data, b.x.Data)), nil
}

func checkSumPool[T ragged.Floats](ops backend.Ops[T], b batch[T], src random.Source) (float64, error) {
	y, err := ops.SumPool(b.x, b.lengths)
	if err != nil {
		return 0, err
	}
	dY := noise[T](src, y.Shape...)
	dX, err := ops.BackpropSumPool(dY, b.lengths)
	if err != nil {
		return 0, err
	}
	return relErr(dot(dY.Data, y.Data), dot(dX.Data, b.x.Data)), nil
}

func checkMeanPool[T ragged.Floats](ops backend.Ops[T], b batch[T], src random.Source) (float64, error) {
	y, err := ops.MeanPool(b.x, b.lengths)
	if err != nil {
		return 0, err
	}
	dY := noise[T](src, y.Shape...)
	dX, err := ops.BackpropMeanPool(dY, b.lengths)
	if err != nil {
		return 0, err
	}
	return relErr(dot(dY.Data, y.Data), dot(dX.Data, b.x.Data)), nil
}

// checkMaxPool relies on max pooling being locally linear: <dY, y> = <dX, x>
// holds when every upstream value reaches exactly the winning input row.
func checkMaxPool[T ragged.Floats](ops backend.Ops[T], b batch[T], src random.Source) (float64, error) {
	y, which, err := ops.MaxPool(b.x, b.lengths)
	if err != nil {
		return 0, err
	}
	dY := noise[T](src, y.Shape...)
	dX, err := ops.BackpropMaxPool(dY, which, b.lengths)
	if err != nil {
		return 0, err
	}
	return relErr(dot(dY.Data, y.Data), dot(dX.Data, b.x.Data)), nil
}

// checkSoftmaxSequences returns the largest deviation of a per-segment
// column sum from one.
func checkSoftmaxSequences[T ragged.Floats](ops backend.Ops[T], b batch[T], _ random.Source) (float64, error) {
	y, err := ops.SoftmaxSequences(b.x, b.lengths)
	if err != nil {
		return 0, err
	}
	sums, err := ops.SumPool(y, b.lengths)
	if err != nil {
		return 0, err
	}
	var worst float64
	for _, s := range sums.Data {
		worst = max(worst, stdmath.Abs(float64(s)-1))
	}
	return worst, nil
}

// checkAffine compares <dY, x W^T> against <dX, x> and <dW, W>.
func checkAffine[T ragged.Floats](ops backend.Ops[T], b batch[T], src random.Source) (float64, error) {
	dim := b.x.Shape[1]
	w := noise[T](src, dim+1, dim)
	y, err := ops.Affine(b.x, w, ragged.Tensor[T]{})
	if err != nil {
		return 0, err
	}
	dY := noise[T](src, y.Shape...)
	dX, dW, _, err := ops.BackpropAffine(dY, b.x, w)
	if err != nil {
		return 0, err
	}
	forward := dot(dY.Data, y.Data)
	return max(relErr(forward, dot(dX.Data, b.x.Data)), relErr(forward, dot(dW.Data, w.Data))), nil
}

// checkLSTM compares the directional derivative of <dY, outputs> along a
// random weight direction with a central finite difference.
func checkLSTM[T ragged.Floats](ops backend.Ops[T], b batch[T], src random.Source, hidden int) (float64, error) {
	p, err := ops.Pack(b.seqs)
	if err != nil {
		return 0, err
	}
	w := lstm.InitWeights[T](src, p.Dim, hidden)
	seq, err := ops.LSTM(w, p, nil, nil)
	if err != nil {
		return 0, err
	}
	dY := noise[T](src, len(seq.Outputs()))
	grads, err := ops.BackpropLSTM(w, seq, p, dY.Data, nil, lstm.BackwardOptions{})
	if err != nil {
		return 0, err
	}
	dir := noise[T](src, len(w.W))
	analytic := dot(grads.Params.W, dir.Data)

	h := 1e-2
	if epsilon[T]() < 1e-6 {
		h = 1e-5
	}
	objective := func(step float64) (float64, error) {
		shifted := lstm.Weights[T]{W: make([]T, len(w.W)), B: w.B, NI: w.NI, NO: w.NO}
		for i := range shifted.W {
			shifted.W[i] = w.W[i] + T(step)*dir.Data[i]
		}
		s, err := ops.LSTM(shifted, p, nil, nil)
		if err != nil {
			return 0, err
		}
		return dot(dY.Data, s.Outputs()), nil
	}
	plus, err := objective(h)
	if err != nil {
		return 0, err
	}
	minus, err := objective(-h)
	if err != nil {
		return 0, err
	}
	return relErr(analytic, (plus-minus)/(2*h)), nil
}

// checkHalf verifies that inputs already rounded to float16 survive a
// float16 storage round trip unchanged.
func checkHalf[T ragged.Floats](_ backend.Ops[T], b batch[T], _ random.Source) (float64, error) {
	stored := make([]float16.Float16, b.x.Size())
	ragged.ToHalf(stored, b.x.Data)
	back := make([]T, len(stored))
	ragged.FromHalf(back, stored)
	return maxDiff(back, b.x.Data), nil
}
