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

import "errors"

var (
	// ErrShape reports buffers whose dimensions disagree with each other,
	// e.g. sequences with different feature sizes or lengths that do not
	// sum to the number of rows.
	ErrShape = errors.New("ragged: shape mismatch")

	// ErrEmptySegment reports a zero-length segment passed to a reduction
	// that is undefined on empty input (mean and max pooling).
	ErrEmptySegment = errors.New("ragged: empty segment")

	// ErrUnsupportedWindow reports a seq2col window radius other than 1.
	ErrUnsupportedWindow = errors.New("ragged: unsupported window radius")

	// ErrNotImplemented reports a configuration that the kernels reject
	// instead of silently producing wrong output.
	ErrNotImplemented = errors.New("ragged: not implemented")
)
