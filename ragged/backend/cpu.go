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
	"fmt"
	"log/slog"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/activation"
	"github.com/ajroetker/go-ragged/ragged/contrib/linalg"
	"github.com/ajroetker/go-ragged/ragged/contrib/loss"
	"github.com/ajroetker/go-ragged/ragged/contrib/lstm"
	"github.com/ajroetker/go-ragged/ragged/contrib/optim"
	"github.com/ajroetker/go-ragged/ragged/contrib/pack"
	"github.com/ajroetker/go-ragged/ragged/contrib/pool"
	"github.com/ajroetker/go-ragged/ragged/contrib/softmax"
	"github.com/ajroetker/go-ragged/ragged/contrib/specialize"
	"github.com/ajroetker/go-ragged/ragged/contrib/window"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
)

// CPU implements Ops with the contrib kernels, spreading row- and
// segment-parallel work over a persistent worker pool.
type CPU[T ragged.Floats] struct {
	opts   Options
	logger *slog.Logger
	pool   *workerpool.Pool

	segments *specialize.Cache[string, *specialize.SegmentPlan]
	windows  *specialize.Cache[specialize.WindowKey, *specialize.WindowPlan]
}

var (
	_ Ops[float32] = (*CPU[float32])(nil)
	_ Ops[float64] = (*CPU[float64])(nil)
)

// NewCPU returns a CPU backend configured from the environment and opts.
func NewCPU[T ragged.Floats](opts ...Option) *CPU[T] {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = DefaultOptions().NumWorkers
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &CPU[T]{
		opts:     o,
		logger:   logger,
		segments: specialize.NewCache[string, *specialize.SegmentPlan](o.PlanCache),
		windows:  specialize.NewCache[specialize.WindowKey, *specialize.WindowPlan](o.PlanCache),
	}
	if !o.Sequential && o.NumWorkers > 1 {
		c.pool = workerpool.New(o.NumWorkers)
	}
	logger.Debug("cpu backend", "workers", c.pool.NumWorkers(), "sequential", c.pool == nil,
		"plan_cache", o.PlanCache, "dispatch", ragged.Info())
	return c
}

// Name implements Ops.
func (c *CPU[T]) Name() string { return "cpu" }

// Close stops the worker pool.
func (c *CPU[T]) Close() {
	c.pool.Close()
}

// NumWorkers returns the number of pool workers, 1 when sequential.
func (c *CPU[T]) NumWorkers() int {
	return c.pool.NumWorkers()
}

// PlanStats reports plan cache hits and misses across both caches.
func (c *CPU[T]) PlanStats() (hits, misses int64) {
	sh, sm := c.segments.Stats()
	wh, wm := c.windows.Stats()
	return sh + wh, sm + wm
}

func matrix[T ragged.Floats](x ragged.Tensor[T], name string) (rows, cols int, err error) {
	if x.NDim() != 2 {
		return 0, 0, fmt.Errorf("%s must be 2-D, got shape %v: %w", name, x.Shape, ragged.ErrShape)
	}
	return x.Shape[0], x.Shape[1], nil
}

// rowsCols views x as [rows, last dim] for the row-wise kernels.
func rowsCols[T ragged.Floats](x ragged.Tensor[T]) (rows, cols int) {
	if x.NDim() == 0 {
		return 1, 1
	}
	cols = x.Dim(-1)
	if cols == 0 {
		return 0, 0
	}
	return x.Size() / cols, cols
}

func output[T ragged.Floats](x ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	if inplace {
		return x
	}
	return ragged.New[T](x.Shape...)
}

func sameShape[T ragged.Floats](a, b ragged.Tensor[T], what string) error {
	if a.Size() != b.Size() || a.NDim() != b.NDim() {
		return fmt.Errorf("%s: shapes %v and %v differ: %w", what, a.Shape, b.Shape, ragged.ErrShape)
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return fmt.Errorf("%s: shapes %v and %v differ: %w", what, a.Shape, b.Shape, ragged.ErrShape)
		}
	}
	return nil
}

// checkSegments validates lengths against rows through the segment plan
// cache.
func (c *CPU[T]) checkSegments(lengths []int, rows int, allowEmpty bool) error {
	plan, err := c.segments.GetOrBuild(specialize.SegmentKey(lengths), func() (*specialize.SegmentPlan, error) {
		p, err := specialize.NewSegmentPlan(lengths)
		if err == nil {
			c.logger.Debug("segment plan", "segments", len(lengths), "rows", p.Rows)
		}
		return p, err
	})
	if err != nil {
		return err
	}
	return plan.Check(rows, allowEmpty)
}

// Pack implements Ops.
func (c *CPU[T]) Pack(seqs []ragged.Tensor[T]) (ragged.Padded[T], error) {
	if len(seqs) == 0 {
		return ragged.Padded[T]{SizeAtT: []int{}, Lengths: []int{}, Indices: []int{}}, nil
	}
	data, dim, err := sequences(seqs)
	if err != nil {
		return ragged.Padded[T]{}, err
	}
	return pack.Pack(data, dim)
}

// sequences checks that seqs are 2-D with one feature dim and returns their
// buffers.
func sequences[T ragged.Floats](seqs []ragged.Tensor[T]) ([][]T, int, error) {
	data := make([][]T, len(seqs))
	dim := -1
	for i, s := range seqs {
		_, cols, err := matrix(s, fmt.Sprintf("sequence %d", i))
		if err != nil {
			return nil, 0, err
		}
		if dim >= 0 && cols != dim {
			return nil, 0, fmt.Errorf("sequence %d has feature dim %d, want %d: %w", i, cols, dim, ragged.ErrShape)
		}
		dim = cols
		data[i] = s.Data
	}
	return data, dim, nil
}

// Unpack implements Ops.
func (c *CPU[T]) Unpack(p ragged.Padded[T]) []ragged.Tensor[T] {
	seqs := pack.Unpack(p)
	out := make([]ragged.Tensor[T], len(seqs))
	for k, i := range p.Indices {
		out[i] = ragged.FromSlice(seqs[i], p.Lengths[k], p.Dim)
	}
	return out
}

// Flatten implements Ops.
func (c *CPU[T]) Flatten(seqs []ragged.Tensor[T], pad int) (ragged.Tensor[T], []int, error) {
	if len(seqs) == 0 {
		return ragged.New[T](0, 0), []int{}, nil
	}
	data, dim, err := sequences(seqs)
	if err != nil {
		return ragged.Tensor[T]{}, nil, err
	}
	flat, lengths, err := pack.Flatten(data, dim, pad)
	if err != nil {
		return ragged.Tensor[T]{}, nil, err
	}
	return ragged.FromSlice(flat, len(flat)/dim, dim), lengths, nil
}

// Unflatten implements Ops. The sequences are views into x.
func (c *CPU[T]) Unflatten(x ragged.Tensor[T], lengths []int, pad int) ([]ragged.Tensor[T], error) {
	_, dim, err := matrix(x, "x")
	if err != nil {
		return nil, err
	}
	views, err := pack.Unflatten(x.Data, lengths, dim, pad)
	if err != nil {
		return nil, err
	}
	out := make([]ragged.Tensor[T], len(views))
	for i, v := range views {
		out[i] = ragged.FromSlice(v, lengths[i], dim)
	}
	return out, nil
}

// Seq2Col implements Ops. Without lengths the whole of x is one sequence
// and the gather table comes from the plan cache.
func (c *CPU[T]) Seq2Col(x ragged.Tensor[T], radius int, lengths []int) (ragged.Tensor[T], error) {
	rows, dim, err := matrix(x, "x")
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	nF := 2*radius + 1
	if lengths == nil && dim > 0 {
		plan, err := c.windowPlan(rows, radius)
		if err != nil {
			return ragged.Tensor[T]{}, err
		}
		return ragged.FromSlice(specialize.Seq2Col(plan, x.Data, dim), rows, dim*nF), nil
	}
	cols, err := window.ParallelSeq2Col(c.pool, x.Data, lengths, dim, radius)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(cols, rows, dim*nF), nil
}

func (c *CPU[T]) windowPlan(rows, radius int) (*specialize.WindowPlan, error) {
	key := specialize.WindowKey{Rows: rows, Radius: radius}
	return c.windows.GetOrBuild(key, func() (*specialize.WindowPlan, error) {
		return specialize.NewWindowPlan(key)
	})
}

// BackpropSeq2Col implements Ops.
func (c *CPU[T]) BackpropSeq2Col(dcols ragged.Tensor[T], radius int, lengths []int) (ragged.Tensor[T], error) {
	rows, width, err := matrix(dcols, "dcols")
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	if err := window.CheckRadius(radius); err != nil {
		return ragged.Tensor[T]{}, err
	}
	nF := 2*radius + 1
	if width%nF != 0 {
		return ragged.Tensor[T]{}, fmt.Errorf("dcols width %d is not a multiple of %d: %w", width, nF, ragged.ErrShape)
	}
	dim := width / nF
	if lengths == nil && dim > 0 {
		plan, err := c.windowPlan(rows, radius)
		if err != nil {
			return ragged.Tensor[T]{}, err
		}
		return ragged.FromSlice(specialize.BackpropSeq2Col(plan, dcols.Data, dim), rows, dim), nil
	}
	dseq, err := window.ParallelBackpropSeq2Col(c.pool, dcols.Data, lengths, dim, radius)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(dseq, rows, dim), nil
}

// Affine implements Ops. b may be the zero Tensor to skip the bias.
func (c *CPU[T]) Affine(x, w, b ragged.Tensor[T]) (ragged.Tensor[T], error) {
	batch, nI, err := matrix(x, "x")
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	nO, wI, err := matrix(w, "w")
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	if wI != nI {
		return ragged.Tensor[T]{}, fmt.Errorf("w has %d inputs, x has %d: %w", wI, nI, ragged.ErrShape)
	}
	var bias []T
	if b.Data != nil {
		if b.NDim() != 1 || b.Shape[0] != nO {
			return ragged.Tensor[T]{}, fmt.Errorf("b has shape %v, want [%d]: %w", b.Shape, nO, ragged.ErrShape)
		}
		bias = b.Data
	}
	out := ragged.New[T](batch, nO)
	linalg.ParallelAffine(c.pool, x.Data, w.Data, bias, out.Data, batch, nI, nO)
	return out, nil
}

// BackpropAffine implements Ops.
func (c *CPU[T]) BackpropAffine(dY, x, w ragged.Tensor[T]) (dX, dW, dB ragged.Tensor[T], err error) {
	batch, nI, err := matrix(x, "x")
	if err != nil {
		return dX, dW, dB, err
	}
	nO, wI, err := matrix(w, "w")
	if err != nil {
		return dX, dW, dB, err
	}
	if wI != nI {
		return dX, dW, dB, fmt.Errorf("w has %d inputs, x has %d: %w", wI, nI, ragged.ErrShape)
	}
	if dY.NDim() != 2 || dY.Shape[0] != batch || dY.Shape[1] != nO {
		return dX, dW, dB, fmt.Errorf("dY has shape %v, want [%d %d]: %w", dY.Shape, batch, nO, ragged.ErrShape)
	}
	dX = ragged.New[T](batch, nI)
	dW = ragged.New[T](nO, nI)
	dB = ragged.New[T](nO)
	linalg.BackpropAffine(dY.Data, x.Data, w.Data, dX.Data, dW.Data, dB.Data, batch, nI, nO)
	return dX, dW, dB, nil
}

// ReLU implements Ops.
func (c *CPU[T]) ReLU(x ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	out := output(x, inplace)
	rows, cols := rowsCols(x)
	activation.ParallelReLU(c.pool, x.Data, out.Data, rows, cols)
	return out
}

// BackpropReLU implements Ops. With inplace, dY is overwritten.
func (c *CPU[T]) BackpropReLU(dY, y ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	out := output(dY, inplace)
	rows, cols := rowsCols(dY)
	activation.ParallelBackpropReLU(c.pool, dY.Data, y.Data, out.Data, rows, cols)
	return out
}

// Mish implements Ops.
func (c *CPU[T]) Mish(x ragged.Tensor[T], threshold T, inplace bool) ragged.Tensor[T] {
	out := output(x, inplace)
	rows, cols := rowsCols(x)
	activation.ParallelMish(c.pool, x.Data, out.Data, rows, cols, threshold)
	return out
}

// BackpropMish implements Ops. With inplace, dY is overwritten.
func (c *CPU[T]) BackpropMish(dY, x ragged.Tensor[T], threshold T, inplace bool) ragged.Tensor[T] {
	out := output(dY, inplace)
	rows, cols := rowsCols(dY)
	activation.ParallelBackpropMish(c.pool, dY.Data, x.Data, out.Data, rows, cols, threshold)
	return out
}

// Sigmoid implements Ops.
func (c *CPU[T]) Sigmoid(x ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	out := output(x, inplace)
	rows, cols := rowsCols(x)
	activation.ParallelSigmoid(c.pool, x.Data, out.Data, rows, cols)
	return out
}

// DSigmoid implements Ops.
func (c *CPU[T]) DSigmoid(y ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	out := output(y, inplace)
	activation.DSigmoid(y.Data, out.Data)
	return out
}

// DTanh implements Ops.
func (c *CPU[T]) DTanh(y ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	out := output(y, inplace)
	activation.DTanh(y.Data, out.Data)
	return out
}

// Maxout implements Ops.
func (c *CPU[T]) Maxout(x ragged.Tensor[T]) (ragged.Tensor[T], []int, error) {
	if x.NDim() < 2 || x.Dim(-1) == 0 {
		return ragged.Tensor[T]{}, nil, fmt.Errorf("maxout input has shape %v: %w", x.Shape, ragged.ErrShape)
	}
	pieces := x.Dim(-1)
	out := ragged.New[T](x.Shape[:x.NDim()-1]...)
	which := make([]int, out.Size())
	activation.Maxout(x.Data, out.Data, which, pieces)
	return out, which, nil
}

// BackpropMaxout implements Ops.
func (c *CPU[T]) BackpropMaxout(dY ragged.Tensor[T], which []int, pieces int) (ragged.Tensor[T], error) {
	if pieces <= 0 || len(which) != dY.Size() {
		return ragged.Tensor[T]{}, fmt.Errorf("maxout gradient %v with %d indices and %d pieces: %w",
			dY.Shape, len(which), pieces, ragged.ErrShape)
	}
	for i, w := range which {
		if w < 0 || w >= pieces {
			return ragged.Tensor[T]{}, fmt.Errorf("which[%d] = %d outside [0, %d): %w", i, w, pieces, ragged.ErrShape)
		}
	}
	dX := ragged.New[T](append(append([]int(nil), dY.Shape...), pieces)...)
	activation.BackpropMaxout(dY.Data, which, dX.Data, pieces)
	return dX, nil
}

// Softmax implements Ops.
func (c *CPU[T]) Softmax(x ragged.Tensor[T], inplace bool) ragged.Tensor[T] {
	out := output(x, inplace)
	rows, cols := rowsCols(x)
	softmax.ParallelSoftmax(c.pool, x.Data, out.Data, rows, cols)
	return out
}

// BackpropSoftmax implements Ops.
func (c *CPU[T]) BackpropSoftmax(y, dY ragged.Tensor[T]) ragged.Tensor[T] {
	dX := ragged.New[T](y.Shape...)
	rows, cols := rowsCols(y)
	softmax.ParallelBackpropSoftmax(c.pool, dY.Data, y.Data, dX.Data, rows, cols)
	return dX
}

// SoftmaxSequences implements Ops.
func (c *CPU[T]) SoftmaxSequences(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error) {
	if x.NDim() != 2 {
		return ragged.Tensor[T]{}, fmt.Errorf("sequence softmax over %d-D input: %w", x.NDim(), ragged.ErrNotImplemented)
	}
	if err := c.checkSegments(lengths, x.Shape[0], true); err != nil {
		return ragged.Tensor[T]{}, err
	}
	y, err := softmax.ParallelSequences(c.pool, x.Data, lengths, x.Shape[1])
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(y, x.Shape...), nil
}

// BackpropSoftmaxSequences implements Ops.
func (c *CPU[T]) BackpropSoftmaxSequences(dY, y ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error) {
	if y.NDim() != 2 {
		return ragged.Tensor[T]{}, fmt.Errorf("sequence softmax over %d-D input: %w", y.NDim(), ragged.ErrNotImplemented)
	}
	if err := sameShape(dY, y, "sequence softmax gradient"); err != nil {
		return ragged.Tensor[T]{}, err
	}
	if err := c.checkSegments(lengths, y.Shape[0], true); err != nil {
		return ragged.Tensor[T]{}, err
	}
	dX, err := softmax.ParallelBackpropSequences(c.pool, dY.Data, y.Data, lengths, y.Shape[1])
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(dX, y.Shape...), nil
}

func (c *CPU[T]) pooled(x ragged.Tensor[T], lengths []int, allowEmpty bool) (int, error) {
	rows, dim, err := matrix(x, "x")
	if err != nil {
		return 0, err
	}
	if err := c.checkSegments(lengths, rows, allowEmpty); err != nil {
		return 0, err
	}
	return dim, nil
}

// SumPool implements Ops.
func (c *CPU[T]) SumPool(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error) {
	dim, err := c.pooled(x, lengths, true)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	out, err := pool.ParallelSumPool(c.pool, x.Data, lengths, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(out, len(lengths), dim), nil
}

// MeanPool implements Ops.
func (c *CPU[T]) MeanPool(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error) {
	dim, err := c.pooled(x, lengths, false)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	out, err := pool.ParallelMeanPool(c.pool, x.Data, lengths, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(out, len(lengths), dim), nil
}

// MaxPool implements Ops.
func (c *CPU[T]) MaxPool(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], []int, error) {
	dim, err := c.pooled(x, lengths, false)
	if err != nil {
		return ragged.Tensor[T]{}, nil, err
	}
	out, which, err := pool.ParallelMaxPool(c.pool, x.Data, lengths, dim)
	if err != nil {
		return ragged.Tensor[T]{}, nil, err
	}
	return ragged.FromSlice(out, len(lengths), dim), which, nil
}

func (c *CPU[T]) unpooled(dY ragged.Tensor[T], lengths []int, allowEmpty bool) (rows, dim int, err error) {
	segs, dim, err := matrix(dY, "dY")
	if err != nil {
		return 0, 0, err
	}
	if segs != len(lengths) {
		return 0, 0, fmt.Errorf("dY has %d rows for %d segments: %w", segs, len(lengths), ragged.ErrShape)
	}
	plan, err := c.segments.GetOrBuild(specialize.SegmentKey(lengths), func() (*specialize.SegmentPlan, error) {
		return specialize.NewSegmentPlan(lengths)
	})
	if err != nil {
		return 0, 0, err
	}
	if err := plan.Check(plan.Rows, allowEmpty); err != nil {
		return 0, 0, err
	}
	return plan.Rows, dim, nil
}

// BackpropSumPool implements Ops.
func (c *CPU[T]) BackpropSumPool(dY ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error) {
	rows, dim, err := c.unpooled(dY, lengths, true)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	dX, err := pool.ParallelBackpropSumPool(c.pool, dY.Data, lengths, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(dX, rows, dim), nil
}

// BackpropMeanPool implements Ops.
func (c *CPU[T]) BackpropMeanPool(dY ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error) {
	rows, dim, err := c.unpooled(dY, lengths, false)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	dX, err := pool.ParallelBackpropMeanPool(c.pool, dY.Data, lengths, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(dX, rows, dim), nil
}

// BackpropMaxPool implements Ops.
func (c *CPU[T]) BackpropMaxPool(dY ragged.Tensor[T], which []int, lengths []int) (ragged.Tensor[T], error) {
	rows, dim, err := c.unpooled(dY, lengths, false)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	dX, err := pool.ParallelBackpropMaxPool(c.pool, dY.Data, which, lengths, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(dX, rows, dim), nil
}

// LSTM implements Ops.
func (c *CPU[T]) LSTM(w lstm.Weights[T], x ragged.Padded[T], h0, c0 []T) (*lstm.Sequence[T], error) {
	return lstm.ForwardPadded(w, x, h0, c0)
}

// BackpropLSTM implements Ops.
func (c *CPU[T]) BackpropLSTM(w lstm.Weights[T], seq *lstm.Sequence[T], x ragged.Padded[T], dY, dCells []T, opts lstm.BackwardOptions) (*lstm.Gradients[T], error) {
	return lstm.Backward(w, seq, x.Data, dY, dCells, opts)
}

// Adam implements Ops.
func (c *CPU[T]) Adam(weights, gradient, mom1, mom2 []T, cfg optim.AdamConfig) {
	optim.ParallelAdam(c.pool, weights, gradient, mom1, mom2, cfg)
}

// UpdateAverages implements Ops using the configured MaxDecay.
func (c *CPU[T]) UpdateAverages(ema, weights []T, t int) {
	optim.UpdateAverages(ema, weights, t, c.opts.MaxDecay)
}

// ClipGradient implements Ops.
func (c *CPU[T]) ClipGradient(gradient []T, threshold T) T {
	return optim.ClipGradient(gradient, threshold)
}

// Cosine implements Ops. The result is [rows, 1].
func (c *CPU[T]) Cosine(x, y ragged.Tensor[T]) (ragged.Tensor[T], error) {
	rows, dim, err := matrix(x, "x")
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	if err := sameShape(x, y, "cosine"); err != nil {
		return ragged.Tensor[T]{}, err
	}
	cos, err := loss.Cosine(x.Data, y.Data, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(cos, rows, 1), nil
}

// CosineAbsLoss implements Ops.
func (c *CPU[T]) CosineAbsLoss(x, y ragged.Tensor[T], ignoreZeros bool) (T, error) {
	_, dim, err := matrix(x, "x")
	if err != nil {
		return 0, err
	}
	if err := sameShape(x, y, "cosine loss"); err != nil {
		return 0, err
	}
	return loss.CosineAbsLoss(x.Data, y.Data, dim, ignoreZeros)
}

// Logloss implements Ops.
func (c *CPU[T]) Logloss(yTrue, yPred ragged.Tensor[T]) (ragged.Tensor[T], error) {
	if err := sameShape(yTrue, yPred, "logloss"); err != nil {
		return ragged.Tensor[T]{}, err
	}
	out := ragged.New[T](yPred.Shape...)
	loss.Logloss(yTrue.Data, yPred.Data, out.Data)
	return out, nil
}

// Norms implements Ops.
func (c *CPU[T]) Norms(x ragged.Tensor[T]) (ragged.Tensor[T], error) {
	rows, dim, err := matrix(x, "x")
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	if dim == 0 {
		out := ragged.New[T](rows)
		for i := range out.Data {
			out.Data[i] = 1
		}
		return out, nil
	}
	norms, err := loss.Norms(x.Data, dim)
	if err != nil {
		return ragged.Tensor[T]{}, err
	}
	return ragged.FromSlice(norms, rows), nil
}
