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

	"golang.org/x/sync/errgroup"
)

// ForEachBatch calls fn for every batch on up to limit goroutines (no limit
// when limit <= 0) and returns the first error. Once a call fails, the
// context passed to the others is cancelled and batches that have not
// started are skipped.
//
// Kernels are pure, so independent batches can share one Ops value.
func ForEachBatch[B any](ctx context.Context, limit int, batches []B, fn func(ctx context.Context, i int, batch B) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, b := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, b)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
