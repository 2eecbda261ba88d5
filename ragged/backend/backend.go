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

// Package backend exposes the kernel set behind one injectable interface,
// Ops, operating on ragged.Tensor values. Callers choose an implementation
// explicitly and pass it down; nothing here selects a backend implicitly.
//
// Forward methods allocate and return fresh outputs unless an inplace flag
// is set, in which case they overwrite and return their first argument.
// Shape errors are returned as errors wrapping the ragged sentinels.
package backend

import (
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/lstm"
	"github.com/ajroetker/go-ragged/ragged/contrib/optim"
)

// Ops is the kernel contract consumed by model code.
type Ops[T ragged.Floats] interface {
	// Name identifies the implementation, e.g. "cpu".
	Name() string
	// Close releases any workers held by the implementation.
	Close()

	// Pack builds a time-major batch from [length, dim] sequences.
	Pack(seqs []ragged.Tensor[T]) (ragged.Padded[T], error)
	// Unpack is the inverse of Pack.
	Unpack(p ragged.Padded[T]) []ragged.Tensor[T]
	// Flatten concatenates [length, dim] sequences with pad zero rows
	// around each, returning the [rows, dim] result and the lengths.
	Flatten(seqs []ragged.Tensor[T], pad int) (ragged.Tensor[T], []int, error)
	// Unflatten is the inverse of Flatten.
	Unflatten(x ragged.Tensor[T], lengths []int, pad int) ([]ragged.Tensor[T], error)

	Seq2Col(x ragged.Tensor[T], radius int, lengths []int) (ragged.Tensor[T], error)
	BackpropSeq2Col(dcols ragged.Tensor[T], radius int, lengths []int) (ragged.Tensor[T], error)

	// Affine computes x @ w^T + b for x [batch, nI], w [nO, nI], b [nO].
	Affine(x, w, b ragged.Tensor[T]) (ragged.Tensor[T], error)
	BackpropAffine(dY, x, w ragged.Tensor[T]) (dX, dW, dB ragged.Tensor[T], err error)

	ReLU(x ragged.Tensor[T], inplace bool) ragged.Tensor[T]
	BackpropReLU(dY, y ragged.Tensor[T], inplace bool) ragged.Tensor[T]
	Mish(x ragged.Tensor[T], threshold T, inplace bool) ragged.Tensor[T]
	BackpropMish(dY, x ragged.Tensor[T], threshold T, inplace bool) ragged.Tensor[T]
	Sigmoid(x ragged.Tensor[T], inplace bool) ragged.Tensor[T]
	DSigmoid(y ragged.Tensor[T], inplace bool) ragged.Tensor[T]
	DTanh(y ragged.Tensor[T], inplace bool) ragged.Tensor[T]
	// Maxout reduces the last axis of x; which records the winning piece.
	Maxout(x ragged.Tensor[T]) (ragged.Tensor[T], []int, error)
	BackpropMaxout(dY ragged.Tensor[T], which []int, pieces int) (ragged.Tensor[T], error)

	// Softmax normalizes over the last axis.
	Softmax(x ragged.Tensor[T], inplace bool) ragged.Tensor[T]
	BackpropSoftmax(y, dY ragged.Tensor[T]) ragged.Tensor[T]
	// SoftmaxSequences normalizes each segment of a 2-D x independently.
	// Other ranks fail with ragged.ErrNotImplemented.
	SoftmaxSequences(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error)
	BackpropSoftmaxSequences(dY, y ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error)

	SumPool(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error)
	MeanPool(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error)
	MaxPool(x ragged.Tensor[T], lengths []int) (ragged.Tensor[T], []int, error)
	BackpropSumPool(dY ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error)
	BackpropMeanPool(dY ragged.Tensor[T], lengths []int) (ragged.Tensor[T], error)
	BackpropMaxPool(dY ragged.Tensor[T], which []int, lengths []int) (ragged.Tensor[T], error)

	// LSTM runs the recurrence over a packed batch.
	LSTM(w lstm.Weights[T], x ragged.Padded[T], h0, c0 []T) (*lstm.Sequence[T], error)
	BackpropLSTM(w lstm.Weights[T], seq *lstm.Sequence[T], x ragged.Padded[T], dY, dCells []T, opts lstm.BackwardOptions) (*lstm.Gradients[T], error)

	Adam(weights, gradient, mom1, mom2 []T, cfg optim.AdamConfig)
	UpdateAverages(ema, weights []T, t int)
	ClipGradient(gradient []T, threshold T) T

	Cosine(x, y ragged.Tensor[T]) (ragged.Tensor[T], error)
	CosineAbsLoss(x, y ragged.Tensor[T], ignoreZeros bool) (T, error)
	Logloss(yTrue, yPred ragged.Tensor[T]) (ragged.Tensor[T], error)
	Norms(x ragged.Tensor[T]) (ragged.Tensor[T], error)
}
