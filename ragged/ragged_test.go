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
	"errors"
	"slices"
	"testing"

	"github.com/x448/float16"
)

func TestTensorReshape(t *testing.T) {
	x := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	y, err := x.Reshape(3, -1)
	if err != nil {
		t.Fatalf("Reshape(3, -1): %v", err)
	}
	if !slices.Equal(y.Shape, []int{3, 2}) {
		t.Errorf("Reshape(3, -1).Shape = %v, want [3 2]", y.Shape)
	}
	if &y.Data[0] != &x.Data[0] {
		t.Error("Reshape copied the data, want a view")
	}

	if _, err := x.Reshape(4, -1); !errors.Is(err, ErrShape) {
		t.Errorf("Reshape(4, -1) error = %v, want ErrShape", err)
	}
	if _, err := x.Reshape(-1, -1); !errors.Is(err, ErrShape) {
		t.Errorf("Reshape(-1, -1) error = %v, want ErrShape", err)
	}
}

func TestTensorIndexAndTranspose(t *testing.T) {
	// [2, 3, 2]
	x := FromSlice([]float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}, 2, 3, 2)

	row := x.Index(1)
	if !slices.Equal(row.Shape, []int{3, 2}) || !slices.Equal(row.Data, []float64{7, 8, 9, 10, 11, 12}) {
		t.Errorf("Index(1) = %v %v", row.Shape, row.Data)
	}

	tr := x.Transpose01()
	if !slices.Equal(tr.Shape, []int{3, 2, 2}) {
		t.Fatalf("Transpose01().Shape = %v, want [3 2 2]", tr.Shape)
	}
	want := []float64{1, 2, 7, 8, 3, 4, 9, 10, 5, 6, 11, 12}
	if !slices.Equal(tr.Data, want) {
		t.Errorf("Transpose01().Data = %v, want %v", tr.Data, want)
	}
	if back := tr.Transpose01(); !slices.Equal(back.Data, x.Data) {
		t.Errorf("double transpose = %v, want %v", back.Data, x.Data)
	}
}

func TestNewPanicsOnNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(-1) did not panic")
		}
	}()
	New[float32](2, -1)
}

func TestOffsets(t *testing.T) {
	got := Offsets([]int{2, 0, 3})
	if want := []int{0, 2, 2, 5}; !slices.Equal(got, want) {
		t.Errorf("Offsets = %v, want %v", got, want)
	}
	if got := Offsets(nil); !slices.Equal(got, []int{0}) {
		t.Errorf("Offsets(nil) = %v, want [0]", got)
	}
}

func TestCheckLengths(t *testing.T) {
	tests := []struct {
		name       string
		lengths    []int
		rows       int
		allowEmpty bool
		want       error
	}{
		{"ok", []int{2, 3}, 5, false, nil},
		{"bad total", []int{2, 3}, 6, false, ErrShape},
		{"negative", []int{-1, 6}, 5, true, ErrShape},
		{"empty rejected", []int{0, 5}, 5, false, ErrEmptySegment},
		{"empty allowed", []int{0, 5}, 5, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLengths(tt.lengths, tt.rows, tt.allowEmpty)
			if tt.want == nil && err != nil {
				t.Errorf("CheckLengths() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("CheckLengths() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPaddedValidate(t *testing.T) {
	good := Padded[float32]{
		Data:    make([]float32, 3*2*1),
		MaxLen:  3,
		Batch:   2,
		Dim:     1,
		SizeAtT: []int{2, 1, 1},
		Lengths: []int{3, 1},
		Indices: []int{1, 0},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if got := len(good.Active(1)); got != 1 {
		t.Errorf("len(Active(1)) = %d, want 1", got)
	}

	bad := good.Clone()
	bad.SizeAtT[1] = 2
	if err := bad.Validate(); !errors.Is(err, ErrShape) {
		t.Errorf("Validate() with wrong SizeAtT = %v, want ErrShape", err)
	}

	bad = good.Clone()
	bad.Indices = []int{0, 0}
	if err := bad.Validate(); !errors.Is(err, ErrShape) {
		t.Errorf("Validate() with repeated index = %v, want ErrShape", err)
	}

	bad = good.Clone()
	bad.Lengths = []int{1, 3}
	if err := bad.Validate(); !errors.Is(err, ErrShape) {
		t.Errorf("Validate() with ascending lengths = %v, want ErrShape", err)
	}
}

func TestHalfRoundTrip(t *testing.T) {
	src := []float32{0, 1, -2.5, 0.1, 65504}
	half := make([]float16.Float16, len(src))
	ToHalf(half, src)
	back := make([]float32, len(src))
	FromHalf(back, half)

	for i, v := range src {
		diff := back[i] - v
		if diff < 0 {
			diff = -diff
		}
		if diff > 1e-3*max(1, v) {
			t.Errorf("half round trip [%d]: got %v, want ~%v", i, back[i], v)
		}
	}

	rounded := slices.Clone(src)
	RoundHalf(rounded)
	if !slices.Equal(rounded, back) {
		t.Errorf("RoundHalf = %v, want %v", rounded, back)
	}
}

func TestDispatchInfo(t *testing.T) {
	if s := CurrentLevel().String(); s != "sequential" && s != "parallel" {
		t.Errorf("CurrentLevel() = %q", s)
	}
	if Info() == "" {
		t.Error("Info() is empty")
	}
}
