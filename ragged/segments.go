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

import (
	"fmt"

	"github.com/samber/lo"
)

// Offsets returns the starting row of every segment plus a final entry equal
// to the total number of rows, so segment i spans rows
// [offsets[i], offsets[i+1]).
func Offsets(lengths []int) []int {
	offsets := make([]int, len(lengths)+1)
	for i, n := range lengths {
		offsets[i+1] = offsets[i] + n
	}
	return offsets
}

// CheckLengths validates a segment lengths array against a flat buffer of
// rows rows. Negative lengths are always rejected; zero lengths are rejected
// unless allowEmpty is set.
func CheckLengths(lengths []int, rows int, allowEmpty bool) error {
	for i, n := range lengths {
		if n < 0 {
			return fmt.Errorf("segment %d has negative length %d: %w", i, n, ErrShape)
		}
		if n == 0 && !allowEmpty {
			return fmt.Errorf("segment %d: %w", i, ErrEmptySegment)
		}
	}
	if total := lo.Sum(lengths); total != rows {
		return fmt.Errorf("segment lengths sum to %d, buffer has %d rows: %w", total, rows, ErrShape)
	}
	return nil
}
