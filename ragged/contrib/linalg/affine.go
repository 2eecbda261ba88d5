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

package linalg

import (
	"github.com/ajroetker/go-ragged/ragged"
	"github.com/ajroetker/go-ragged/ragged/contrib/workerpool"
)

// MinParallelAffineRows is the batch size below which ParallelAffine runs
// on the calling goroutine.
const MinParallelAffineRows = 64

func checkAffine[T ragged.Floats](x, weight, bias, output []T, batchSize, inFeatures, outFeatures int) {
	if len(x) < batchSize*inFeatures {
		panic("affine: x slice too short")
	}
	if len(weight) < outFeatures*inFeatures {
		panic("affine: weight slice too short")
	}
	if len(output) < batchSize*outFeatures {
		panic("affine: output slice too short")
	}
	if bias != nil && len(bias) < outFeatures {
		panic("affine: bias slice too short")
	}
}

// Affine computes output = x @ weight^T + bias. Pass a nil bias to skip the
// bias add.
func Affine[T ragged.Floats](x, weight, bias, output []T, batchSize, inFeatures, outFeatures int) {
	checkAffine(x, weight, bias, output, batchSize, inFeatures, outFeatures)
	affineRows(x, weight, bias, output, batchSize, inFeatures, outFeatures)
}

func affineRows[T ragged.Floats](x, weight, bias, output []T, rows, inFeatures, outFeatures int) {
	if bias != nil {
		for i := range rows {
			copy(output[i*outFeatures:(i+1)*outFeatures], bias[:outFeatures])
		}
		Gemm(false, true, rows, outFeatures, inFeatures, 1, x, inFeatures, weight, inFeatures, 1, output, outFeatures)
		return
	}
	Gemm(false, true, rows, outFeatures, inFeatures, 1, x, inFeatures, weight, inFeatures, 0, output, outFeatures)
}

// ParallelAffine computes Affine with the batch split across pool workers.
// Each worker multiplies a contiguous block of rows against the full weight
// matrix.
func ParallelAffine[T ragged.Floats](pool *workerpool.Pool, x, weight, bias, output []T, batchSize, inFeatures, outFeatures int) {
	checkAffine(x, weight, bias, output, batchSize, inFeatures, outFeatures)
	if pool == nil || batchSize < MinParallelAffineRows {
		affineRows(x, weight, bias, output, batchSize, inFeatures, outFeatures)
		return
	}
	pool.ParallelFor(batchSize, func(start, end int) {
		affineRows(x[start*inFeatures:end*inFeatures], weight, bias,
			output[start*outFeatures:end*outFeatures], end-start, inFeatures, outFeatures)
	})
}

// BackpropAffine computes the gradients of Affine given dY = d(output).
//
//   - dX ([batchSize, inFeatures]) is overwritten with dY @ weight; pass nil
//     to skip it.
//   - dW ([outFeatures, inFeatures]) accumulates dY^T @ x.
//   - dB ([outFeatures]) accumulates the column sums of dY; pass nil to skip.
//
// dW and dB accumulate so that a recurrence can sum gradients over steps.
func BackpropAffine[T ragged.Floats](dY, x, weight, dX, dW, dB []T, batchSize, inFeatures, outFeatures int) {
	if len(dY) < batchSize*outFeatures {
		panic("affine: dY slice too short")
	}
	if len(x) < batchSize*inFeatures {
		panic("affine: x slice too short")
	}
	if len(dW) < outFeatures*inFeatures {
		panic("affine: dW slice too short")
	}
	if dX != nil {
		if len(weight) < outFeatures*inFeatures {
			panic("affine: weight slice too short")
		}
		if len(dX) < batchSize*inFeatures {
			panic("affine: dX slice too short")
		}
		Gemm(false, false, batchSize, inFeatures, outFeatures, 1, dY, outFeatures, weight, inFeatures, 0, dX, inFeatures)
	}
	Gemm(true, false, outFeatures, inFeatures, batchSize, 1, dY, outFeatures, x, inFeatures, 1, dW, inFeatures)
	if dB != nil {
		if len(dB) < outFeatures {
			panic("affine: dB slice too short")
		}
		for i := range batchSize {
			row := dY[i*outFeatures : (i+1)*outFeatures]
			for j, v := range row {
				dB[j] += v
			}
		}
	}
}
