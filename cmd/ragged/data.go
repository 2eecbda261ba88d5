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
	"fmt"

	"github.com/samber/lo"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/random"
)

// shapeFlags size the random batches.
type shapeFlags struct {
	batches int
	seqs    int
	maxLen  int
	dim     int
	hidden  int
	seed    uint64
	jobs    int
}

func (s shapeFlags) validate() error {
	if s.batches <= 0 || s.seqs <= 0 || s.maxLen <= 0 || s.dim <= 0 || s.hidden <= 0 {
		return fmt.Errorf("batches, seqs, max-len, dim and hidden must be positive")
	}
	return nil
}

// batch is a set of sequences together with their concatenation.
type batch[T ragged.Floats] struct {
	seqs    []ragged.Tensor[T]
	lengths []int
	x       ragged.Tensor[T]
}

// newBatch draws n sequences of 1..maxLen rows with values in [-1, 1].
// With half set every value is rounded to the nearest float16.
func newBatch[T ragged.Floats](src random.Source, n, maxLen, dim int, half bool) batch[T] {
	lengths := lo.Times(n, func(int) int { return 1 + random.IntN(src, maxLen) })
	rows := lo.Sum(lengths)
	x := ragged.New[T](rows, dim)
	random.Uniform(src, x.Data, -1, 1)
	if half {
		ragged.RoundHalf(x.Data)
	}

	seqs := make([]ragged.Tensor[T], n)
	offsets := ragged.Offsets(lengths)
	for i, length := range lengths {
		seqs[i] = ragged.FromSlice(x.Data[offsets[i]*dim:offsets[i+1]*dim], length, dim)
	}
	return batch[T]{seqs: seqs, lengths: lengths, x: x}
}

func newBatches[T ragged.Floats](s shapeFlags, half bool) []batch[T] {
	return lo.Times(s.batches, func(i int) batch[T] {
		return newBatch[T](random.New(s.seed+uint64(i)), s.seqs, s.maxLen, s.dim, half)
	})
}
