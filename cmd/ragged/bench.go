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
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/backend"
	"github.com/ajroetker/go-ragged/ragged/contrib/activation"
	"github.com/ajroetker/go-ragged/ragged/contrib/lstm"
	"github.com/ajroetker/go-ragged/ragged/contrib/optim"
	"github.com/ajroetker/go-ragged/ragged/contrib/random"
)

// kernel is one timed operation. prepare runs outside the timed region and
// returns the closure to time.
type kernel[T ragged.Floats] struct {
	name    string
	prepare func(ops backend.Ops[T], b batch[T]) (func() error, error)
}

func newBenchCmd() *cobra.Command {
	var (
		bf     backendFlags
		shape  shapeFlags
		repeat int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time the kernels over concurrent random batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := shape.validate(); err != nil {
				return err
			}
			if err := bf.checkDType(); err != nil {
				return err
			}
			if repeat <= 0 {
				return fmt.Errorf("repeat must be positive")
			}
			logger := newLogger(cmd.ErrOrStderr())
			if bf.dtype == "float64" {
				return runBench[float64](cmd, &bf, shape, repeat, logger)
			}
			return runBench[float32](cmd, &bf, shape, repeat, logger)
		},
	}
	bf.register(cmd.Flags())
	registerShapeFlags(cmd, &shape)
	cmd.Flags().IntVar(&repeat, "repeat", 10, "Timed repetitions per batch")
	return cmd
}

func kernels[T ragged.Floats](hidden int) []kernel[T] {
	return []kernel[T]{
		{"pack", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			return func() error {
				_, err := ops.Pack(b.seqs)
				return err
			}, nil
		}},
		{"seq2col", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			return func() error {
				_, err := ops.Seq2Col(b.x, 1, b.lengths)
				return err
			}, nil
		}},
		{"affine", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			dim := b.x.Shape[1]
			w := noise[T](random.Default(), dim, dim)
			bias := ragged.New[T](dim)
			return func() error {
				_, err := ops.Affine(b.x, w, bias)
				return err
			}, nil
		}},
		{"mish", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			return func() error {
				ops.Mish(b.x, activation.DefaultMishThreshold, false)
				return nil
			}, nil
		}},
		{"softmax sequences", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			return func() error {
				_, err := ops.SoftmaxSequences(b.x, b.lengths)
				return err
			}, nil
		}},
		{"mean pool", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			return func() error {
				_, err := ops.MeanPool(b.x, b.lengths)
				return err
			}, nil
		}},
		{"max pool", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			return func() error {
				_, _, err := ops.MaxPool(b.x, b.lengths)
				return err
			}, nil
		}},
		{"lstm", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			p, err := ops.Pack(b.seqs)
			if err != nil {
				return nil, err
			}
			w := lstm.InitWeights[T](random.Default(), p.Dim, hidden)
			return func() error {
				_, err := ops.LSTM(w, p, nil, nil)
				return err
			}, nil
		}},
		{"adam", func(ops backend.Ops[T], b batch[T]) (func() error, error) {
			n := b.x.Size()
			weights := make([]T, n)
			mom1, mom2 := make([]T, n), make([]T, n)
			cfg := optim.DefaultAdamConfig()
			return func() error {
				ops.Adam(weights, b.x.Data, mom1, mom2, cfg)
				return nil
			}, nil
		}},
	}
}

func runBench[T ragged.Floats](cmd *cobra.Command, bf *backendFlags, shape shapeFlags, repeat int, logger *slog.Logger) error {
	ops, err := openBackend[T](bf, logger)
	if err != nil {
		return err
	}
	defer ops.Close()

	batches := newBatches[T](shape, false)
	rows := lo.SumBy(batches, func(b batch[T]) int { return b.x.Shape[0] })

	table := newTable(cmd.OutOrStdout(), "KERNEL", "TOTAL", "PER BATCH", "ROWS/S")
	for _, k := range kernels[T](shape.hidden) {
		runs := make([]func() error, len(batches))
		for i, b := range batches {
			if runs[i], err = k.prepare(ops, b); err != nil {
				return fmt.Errorf("%s: %w", k.name, err)
			}
		}

		start := time.Now()
		err := backend.ForEachBatch(cmd.Context(), shape.jobs, runs, func(ctx context.Context, _ int, run func() error) error {
			for range repeat {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := run(); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s: %w", k.name, err)
		}
		elapsed := time.Since(start)
		logger.Debug("bench", "kernel", k.name, "elapsed", elapsed)

		perBatch := elapsed / time.Duration(len(batches)*repeat)
		rate := float64(rows*repeat) / elapsed.Seconds()
		table.Append([]string{k.name, elapsed.Round(time.Microsecond).String(), perBatch.String(), fmt.Sprintf("%.3g", rate)})
	}
	table.Render()
	return nil
}
