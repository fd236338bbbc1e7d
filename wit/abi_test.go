package wit

import (
	"fmt"
	"math"
	"testing"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		ptr   uintptr
		align uintptr
		want  uintptr
	}{
		{0, 1, 0},
		{0, 2, 0},
		{0, 4, 0},
		{0, 8, 0},
		{1, 1, 1},
		{1, 2, 2},
		{1, 4, 4},
		{1, 8, 8},
		{2, 1, 2},
		{2, 2, 2},
		{2, 4, 4},
		{2, 8, 8},
		{3, 1, 3},
		{3, 2, 4},
		{3, 4, 4},
		{3, 8, 8},
		{5, 1, 5},
		{5, 2, 6},
		{5, 4, 8},
		{5, 8, 8},
		{9, 1, 9},
		{9, 2, 10},
		{9, 4, 12},
		{9, 8, 16},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%d,%d=%d", tt.ptr, tt.align, tt.want)
		t.Run(name, func(t *testing.T) {
			got := Align(tt.ptr, tt.align)
			if got != tt.want {
				t.Errorf("Align(%d, %d): expected %d, got %d", tt.ptr, tt.align, tt.want, got)
			}
		})
	}
}

func TestDiscriminant(t *testing.T) {
	tests := []struct {
		n    int
		want Type
	}{
		{0, U8{}},
		{1, U8{}},
		{5, U8{}},
		{8, U8{}},
		{255, U8{}},
		{256, U8{}},
		{257, U16{}},
		{10000, U16{}},
		{32768, U16{}},
		{65536, U16{}},
		{65537, U32{}},
		{1 << 24, U32{}},
		{math.MaxInt32, U32{}},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%d", tt.n)
		t.Run(name, func(t *testing.T) {
			got := Discriminant(tt.n)
			if got != tt.want {
				t.Errorf("Discriminant(%d): expected %T, got %T", tt.n, tt.want, got)
			}
		})
	}
}
