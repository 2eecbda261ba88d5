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

package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/lstm"
	"github.com/ajroetker/go-ragged/ragged/contrib/random"
	"github.com/stretchr/testify/require"
)

func randomTensor(seed uint64, shape ...int) ragged.Tensor[float64] {
	x := ragged.New[float64](shape...)
	random.Uniform(random.New(seed), x.Data, -1, 1)
	return x
}

func TestNew(t *testing.T) {
	ops, err := New[float32]("cpu", WithSequential())
	require.NoError(t, err)
	defer ops.Close()
	require.Equal(t, "cpu", ops.Name())
	require.Contains(t, Names(), "cpu")

	_, err = New[float32]("cuda")
	require.Error(t, err)
}

func TestNewCPUOptions(t *testing.T) {
	c := NewCPU[float64](WithNumWorkers(3), WithPlanCache(0))
	defer c.Close()
	require.Equal(t, 3, c.NumWorkers())

	seq := NewCPU[float64](WithNumWorkers(3), WithSequential())
	defer seq.Close()
	require.Equal(t, 1, seq.NumWorkers())
}

func TestPackUnpack(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	seqs := []ragged.Tensor[float64]{
		ragged.FromSlice([]float64{1, 2, 3, 4}, 2, 2),
		ragged.FromSlice([]float64{5, 6, 7, 8, 9, 10}, 3, 2),
		ragged.FromSlice([]float64{11, 12}, 1, 2),
	}
	p, err := ops.Pack(seqs)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	require.Equal(t, []int{3, 2, 1}, p.Lengths)
	require.Equal(t, []int{1, 0, 2}, p.Indices)
	require.Equal(t, []int{3, 2, 1}, p.SizeAtT)

	back := ops.Unpack(p)
	require.Len(t, back, len(seqs))
	for i := range seqs {
		require.Equal(t, seqs[i].Shape, back[i].Shape)
		require.Equal(t, seqs[i].Data, back[i].Data)
	}

	empty, err := ops.Pack(nil)
	require.NoError(t, err)
	require.Empty(t, empty.Lengths)
	require.Empty(t, ops.Unpack(empty))
}

func TestPackErrors(t *testing.T) {
	ops := NewCPU[float32](WithSequential())
	defer ops.Close()

	_, err := ops.Pack([]ragged.Tensor[float32]{
		ragged.New[float32](2, 3),
		ragged.New[float32](2, 4),
	})
	require.ErrorIs(t, err, ragged.ErrShape)

	_, err = ops.Pack([]ragged.Tensor[float32]{ragged.New[float32](6)})
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestFlattenUnflatten(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	seqs := []ragged.Tensor[float64]{
		ragged.FromSlice([]float64{1, 2}, 1, 2),
		ragged.New[float64](0, 2),
		ragged.FromSlice([]float64{3, 4, 5, 6}, 2, 2),
	}
	flat, lengths, err := ops.Flatten(seqs, 1)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0, 2}, lengths)
	require.Equal(t, []int{7, 2}, flat.Shape)
	require.Equal(t, []float64{0, 0, 1, 2, 0, 0, 0, 0, 3, 4, 5, 6, 0, 0}, flat.Data)

	back, err := ops.Unflatten(flat, lengths, 1)
	require.NoError(t, err)
	for i := range seqs {
		require.Equal(t, seqs[i].Shape, back[i].Shape)
		require.Equal(t, seqs[i].Size(), back[i].Size())
	}
	require.Equal(t, []float64{3, 4, 5, 6}, back[2].Data)

	_, err = ops.Unflatten(flat, []int{4}, 1)
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestSeq2ColPlanMatchesSegments(t *testing.T) {
	ops := NewCPU[float64](WithNumWorkers(2))
	defer ops.Close()

	x := randomTensor(1, 5, 3)
	planned, err := ops.Seq2Col(x, 1, nil)
	require.NoError(t, err)
	segmented, err := ops.Seq2Col(x, 1, []int{5})
	require.NoError(t, err)
	require.Equal(t, []int{5, 9}, planned.Shape)
	require.Equal(t, segmented.Data, planned.Data)

	// The second call reuses the cached window plan.
	_, err = ops.Seq2Col(x, 1, nil)
	require.NoError(t, err)
	hits, misses := ops.PlanStats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)

	dcols := randomTensor(2, 5, 9)
	dPlanned, err := ops.BackpropSeq2Col(dcols, 1, nil)
	require.NoError(t, err)
	dSegmented, err := ops.BackpropSeq2Col(dcols, 1, []int{5})
	require.NoError(t, err)
	require.InDeltaSlice(t, dSegmented.Data, dPlanned.Data, 1e-12)

	_, err = ops.Seq2Col(x, 2, nil)
	require.ErrorIs(t, err, ragged.ErrUnsupportedWindow)
	_, err = ops.BackpropSeq2Col(ragged.New[float64](5, 8), 1, nil)
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestAffine(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	x := ragged.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
	w := ragged.FromSlice([]float64{1, 0, 0, 1, 1, 1}, 3, 2)
	b := ragged.FromSlice([]float64{0.5, 0, -1}, 3)
	y, err := ops.Affine(x, w, b)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, y.Shape)
	require.InDeltaSlice(t, []float64{1.5, 2, 2, 3.5, 4, 6}, y.Data, 1e-12)

	noBias, err := ops.Affine(x, w, ragged.Tensor[float64]{})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 2, 3, 3, 4, 7}, noBias.Data, 1e-12)

	dY := ragged.FromSlice([]float64{1, 0, 0, 0, 1, 1}, 2, 3)
	dX, dW, dB, err := ops.BackpropAffine(dY, x, w)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 0, 1, 2}, dX.Data, 1e-12)
	require.InDeltaSlice(t, []float64{1, 2, 3, 4, 3, 4}, dW.Data, 1e-12)
	require.InDeltaSlice(t, []float64{1, 1, 1}, dB.Data, 1e-12)

	_, err = ops.Affine(x, ragged.New[float64](3, 4), b)
	require.ErrorIs(t, err, ragged.ErrShape)
	_, err = ops.Affine(x, w, ragged.New[float64](2))
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestActivationsInplace(t *testing.T) {
	ops := NewCPU[float32](WithSequential())
	defer ops.Close()

	x := ragged.FromSlice([]float32{-1, 2, -3, 4}, 2, 2)
	y := ops.ReLU(x, false)
	require.Equal(t, []float32{0, 2, 0, 4}, y.Data)
	require.Equal(t, []float32{-1, 2, -3, 4}, x.Data)

	same := ops.ReLU(x, true)
	require.Equal(t, []float32{0, 2, 0, 4}, x.Data)
	require.Same(t, &x.Data[0], &same.Data[0])

	s := ops.Sigmoid(ragged.FromSlice([]float32{0}, 1, 1), false)
	require.InDelta(t, 0.5, float64(s.Data[0]), 1e-6)
	require.InDelta(t, 0.25, float64(ops.DSigmoid(s, false).Data[0]), 1e-6)
	require.InDelta(t, 1, float64(ops.DTanh(ragged.FromSlice([]float32{0}, 1), false).Data[0]), 1e-6)
}

func TestMaxout(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	x := ragged.FromSlice([]float64{
		1, 5, 3,
		-1, -2, -3,
	}, 2, 1, 3)
	y, which, err := ops.Maxout(x)
	require.NoError(t, err)
	require.Equal(t, []int{2, 1}, y.Shape)
	require.Equal(t, []float64{5, -1}, y.Data)
	require.Equal(t, []int{1, 0}, which)

	dX, err := ops.BackpropMaxout(ragged.FromSlice([]float64{10, 20}, 2, 1), which, 3)
	require.NoError(t, err)
	require.Equal(t, []int{2, 1, 3}, dX.Shape)
	require.Equal(t, []float64{0, 10, 0, 20, 0, 0}, dX.Data)

	_, err = ops.BackpropMaxout(ragged.FromSlice([]float64{10, 20}, 2, 1), []int{3, 0}, 3)
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestSoftmaxSequences(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	x := ragged.FromSlice([]float64{0, 1, 0, 1, 2, 3}, 3, 2)
	y, err := ops.SoftmaxSequences(x, []int{1, 2})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 1}, y.Data[:2], 1e-9)
	require.InDelta(t, 1, y.Data[2]+y.Data[4], 1e-9)
	require.InDelta(t, 1, y.Data[3]+y.Data[5], 1e-9)

	dX, err := ops.BackpropSoftmaxSequences(ragged.New[float64](3, 2), y, []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 0, 0, 0, 0}, dX.Data)

	_, err = ops.SoftmaxSequences(ragged.New[float64](2, 1, 2), []int{2})
	require.ErrorIs(t, err, ragged.ErrNotImplemented)
	_, err = ops.SoftmaxSequences(x, []int{1, 1})
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestPooling(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	x := ragged.FromSlice([]float64{
		1, 4,
		3, 2,
		5, 6,
	}, 3, 2)
	lengths := []int{2, 1}

	sum, err := ops.SumPool(x, lengths)
	require.NoError(t, err)
	require.Equal(t, []float64{4, 6, 5, 6}, sum.Data)

	mean, err := ops.MeanPool(x, lengths)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 3, 5, 6}, mean.Data)

	maxed, which, err := ops.MaxPool(x, lengths)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4, 5, 6}, maxed.Data)
	require.Equal(t, []int{1, 0, 0, 0}, which)

	dY := ragged.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
	dSum, err := ops.BackpropSumPool(dY, lengths)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 1, 2, 3, 4}, dSum.Data)

	dMean, err := ops.BackpropMeanPool(dY, lengths)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 1, 0.5, 1, 3, 4}, dMean.Data)

	dMax, err := ops.BackpropMaxPool(dY, which, lengths)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 2, 1, 0, 3, 4}, dMax.Data)
}

func TestPoolingErrors(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	x := ragged.New[float64](3, 2)
	_, err := ops.SumPool(x, []int{1, 1})
	require.ErrorIs(t, err, ragged.ErrShape)

	sum, err := ops.SumPool(x, []int{3, 0})
	require.NoError(t, err)
	require.Equal(t, []int{2, 2}, sum.Shape)

	_, err = ops.MeanPool(x, []int{3, 0})
	require.ErrorIs(t, err, ragged.ErrEmptySegment)
	_, _, err = ops.MaxPool(x, []int{0, 3})
	require.ErrorIs(t, err, ragged.ErrEmptySegment)
	_, err = ops.BackpropMeanPool(ragged.New[float64](2, 2), []int{3, 0})
	require.ErrorIs(t, err, ragged.ErrEmptySegment)
	_, err = ops.BackpropSumPool(ragged.New[float64](3, 2), []int{3, 0})
	require.ErrorIs(t, err, ragged.ErrShape)
	_, err = ops.SumPool(ragged.New[float64](6), []int{6})
	require.ErrorIs(t, err, ragged.ErrShape)
}

func TestParallelMatchesSequential(t *testing.T) {
	par := NewCPU[float64](WithNumWorkers(4))
	defer par.Close()
	seq := NewCPU[float64](WithSequential())
	defer seq.Close()

	lengths := []int{7, 1, 0, 40, 12, 3, 33}
	x := randomTensor(3, 96, 16)

	ys, err := seq.SoftmaxSequences(x, lengths)
	require.NoError(t, err)
	yp, err := par.SoftmaxSequences(x, lengths)
	require.NoError(t, err)
	require.InDeltaSlice(t, ys.Data, yp.Data, 1e-12)

	ss, err := seq.SumPool(x, lengths)
	require.NoError(t, err)
	sp, err := par.SumPool(x, lengths)
	require.NoError(t, err)
	require.InDeltaSlice(t, ss.Data, sp.Data, 1e-12)

	cs, err := seq.Seq2Col(x, 1, lengths)
	require.NoError(t, err)
	cp, err := par.Seq2Col(x, 1, lengths)
	require.NoError(t, err)
	require.Equal(t, cs.Data, cp.Data)

	require.InDeltaSlice(t, seq.Mish(x, 20, false).Data, par.Mish(x, 20, false).Data, 1e-12)
	require.InDeltaSlice(t, seq.Softmax(x, false).Data, par.Softmax(x, false).Data, 1e-12)
}

func TestLSTM(t *testing.T) {
	ops := NewCPU[float64](WithSequential())
	defer ops.Close()

	const nI, nO = 3, 2
	w := lstm.InitWeights[float64](random.New(7), nI, nO)
	seqs := []ragged.Tensor[float64]{
		randomTensor(11, 2, nI),
		randomTensor(12, 4, nI),
		randomTensor(13, 1, nI),
	}
	p, err := ops.Pack(seqs)
	require.NoError(t, err)

	got, err := ops.LSTM(w, p, nil, nil)
	require.NoError(t, err)
	want, err := lstm.Forward(w, p.Data, p.SizeAtT, p.Batch, nil, nil)
	require.NoError(t, err)
	require.Equal(t, want.Outputs(), got.Outputs())

	dY := make([]float64, len(got.Outputs()))
	for i := range dY {
		dY[i] = 1
	}
	grads, err := ops.BackpropLSTM(w, got, p, dY, nil, lstm.BackwardOptions{})
	require.NoError(t, err)
	require.Len(t, grads.DX, len(p.Data))
	require.Len(t, grads.Params.W, len(w.W))
	require.Nil(t, grads.DH0)
}

func TestOptimizerAndLoss(t *testing.T) {
	ops := NewCPU[float64](WithSequential(), WithMaxDecay(0.5))
	defer ops.Close()

	ema := []float64{0, 0}
	ops.UpdateAverages(ema, []float64{2, 4}, 100)
	require.InDeltaSlice(t, []float64{1, 2}, ema, 1e-12)

	g := []float64{3, 4}
	norm := ops.ClipGradient(g, 1)
	require.InDelta(t, 5, norm, 1e-12)
	require.InDeltaSlice(t, []float64{0.6, 0.8}, g, 1e-12)

	x := ragged.FromSlice([]float64{1, 0, 0, 1}, 2, 2)
	cos, err := ops.Cosine(x, x)
	require.NoError(t, err)
	require.Equal(t, []int{2, 1}, cos.Shape)
	require.InDeltaSlice(t, []float64{1, 1}, cos.Data, 1e-6)

	_, err = ops.Cosine(x, ragged.New[float64](2, 3))
	require.ErrorIs(t, err, ragged.ErrShape)

	norms, err := ops.Norms(ragged.FromSlice([]float64{3, 4, 0, 0}, 2, 2))
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{5, 1}, norms.Data, 1e-12)
}

func TestForEachBatch(t *testing.T) {
	ctx := context.Background()
	var total atomic.Int64
	err := ForEachBatch(ctx, 2, []int{1, 2, 3, 4}, func(_ context.Context, _ int, b int) error {
		total.Add(int64(b))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), total.Load())

	boom := errors.New("boom")
	err = ForEachBatch(ctx, 1, []int{1, 2, 3}, func(_ context.Context, i int, _ int) error {
		if i == 0 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	var calls atomic.Int64
	err = ForEachBatch(cancelled, 0, []int{1, 2}, func(context.Context, int, int) error {
		calls.Add(1)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls.Load())
}
