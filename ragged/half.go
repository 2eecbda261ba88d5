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

package ragged

import "github.com/x448/float16"

// ToHalf narrows src into dst as IEEE 754 half-precision values, rounding to
// nearest even. It panics if dst is shorter than src.
func ToHalf[T Floats](dst []float16.Float16, src []T) {
	if len(dst) < len(src) {
		panic("ragged: half destination too short")
	}
	for i, v := range src {
		dst[i] = float16.Fromfloat32(float32(v))
	}
}

// FromHalf widens half-precision values from src into dst. It panics if dst is
// shorter than src.
func FromHalf[T Floats](dst []T, src []float16.Float16) {
	if len(dst) < len(src) {
		panic("ragged: half destination too short")
	}
	for i, h := range src {
		dst[i] = T(h.Float32())
	}
}

// RoundHalf rounds every element of data in place to the nearest value
// representable in half precision. It is used to simulate storing a buffer
// as float16 without changing its element type.
func RoundHalf[T Floats](data []T) {
	for i, v := range data {
		data[i] = T(float16.Fromfloat32(float32(v)).Float32())
	}
}
