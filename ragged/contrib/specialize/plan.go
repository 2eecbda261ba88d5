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

package specialize

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/window"
)

// SegmentPlan is the validated layout of a segment lengths array.
type SegmentPlan struct {
	Lengths  []int
	Offsets  []int
	Rows     int
	HasEmpty bool
}

// SegmentKey returns the cache key of a lengths array.
func SegmentKey(lengths []int) string {
	var b strings.Builder
	for i, n := range lengths {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// NewSegmentPlan validates lengths and precomputes their offsets.
func NewSegmentPlan(lengths []int) (*SegmentPlan, error) {
	offsets := ragged.Offsets(lengths)
	rows := offsets[len(lengths)]
	if err := ragged.CheckLengths(lengths, rows, true); err != nil {
		return nil, err
	}
	return &SegmentPlan{
		Lengths:  slices.Clone(lengths),
		Offsets:  offsets,
		Rows:     rows,
		HasEmpty: slices.Contains(lengths, 0),
	}, nil
}

// Check validates the plan against a buffer of rows rows.
func (p *SegmentPlan) Check(rows int, allowEmpty bool) error {
	if p.HasEmpty && !allowEmpty {
		return fmt.Errorf("segment %d: %w", slices.Index(p.Lengths, 0), ragged.ErrEmptySegment)
	}
	if p.Rows != rows {
		return fmt.Errorf("segment lengths sum to %d, buffer has %d rows: %w", p.Rows, rows, ragged.ErrShape)
	}
	return nil
}

// WindowKey identifies a WindowPlan.
type WindowKey struct {
	Rows, Radius int
}

// WindowPlan is the gather table of seq2col for a fixed row count: Sources
// holds, for every (row, block) pair, the input row it copies or -1.
type WindowPlan struct {
	WindowKey
	Sources []int
}

// NewWindowPlan builds the gather table for key.
func NewWindowPlan(key WindowKey) (*WindowPlan, error) {
	if err := window.CheckRadius(key.Radius); err != nil {
		return nil, err
	}
	nF := 2*key.Radius + 1
	sources := make([]int, key.Rows*nF)
	for t := range key.Rows {
		for j := range nF {
			src := t - key.Radius + j
			if src < 0 || src >= key.Rows {
				src = -1
			}
			sources[t*nF+j] = src
		}
	}
	return &WindowPlan{WindowKey: key, Sources: sources}, nil
}

// Seq2Col applies the plan to a [Rows, dim] sequence. It matches
// window.Seq2Col.
func Seq2Col[T ragged.Floats](p *WindowPlan, seq []T, dim int) []T {
	if len(seq) < p.Rows*dim {
		panic("specialize: seq slice too short")
	}
	cols := make([]T, len(p.Sources)*dim)
	for i, src := range p.Sources {
		if src >= 0 {
			copy(cols[i*dim:(i+1)*dim], seq[src*dim:(src+1)*dim])
		}
	}
	return cols
}

// BackpropSeq2Col applies the adjoint of the plan. It matches
// window.BackpropSeq2Col.
func BackpropSeq2Col[T ragged.Floats](p *WindowPlan, dcols []T, dim int) []T {
	if len(dcols) < len(p.Sources)*dim {
		panic("specialize: dcols slice too short")
	}
	dseq := make([]T, p.Rows*dim)
	for i, src := range p.Sources {
		if src < 0 {
			continue
		}
		dst := dseq[src*dim : (src+1)*dim]
		for f, g := range dcols[i*dim : (i+1)*dim] {
			dst[f] += g
		}
	}
	return dseq
}
