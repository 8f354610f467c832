package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(c, h, w int) *Tensor {
	t := NewTensor(c, h, w)
	for i := range t.Data {
		t.Data[i] = float32(i)
	}
	return t
}

func TestCrop(t *testing.T) {
	src := sequence(2, 3, 4)

	got := src.Crop(1, 3, 1, 3)

	require.Equal(t, 2, got.C)
	require.Equal(t, 2, got.H)
	require.Equal(t, 2, got.W)
	assert.Equal(t, []float32{5, 6, 9, 10, 17, 18, 21, 22}, got.Data)
}

func TestPaste(t *testing.T) {
	dst := NewTensor(1, 3, 3)
	src := sequence(1, 2, 2)

	dst.Paste(src, 1, 1)

	assert.Equal(t, []float32{0, 0, 0, 0, 0, 1, 0, 2, 3}, dst.Data)
}

func TestCropPasteRoundTrip(t *testing.T) {
	src := sequence(3, 5, 7)
	dst := NewTensor(3, 5, 7)

	dst.Paste(src.Crop(0, 2, 0, 7), 0, 0)
	dst.Paste(src.Crop(2, 5, 0, 3), 2, 0)
	dst.Paste(src.Crop(2, 5, 3, 7), 2, 3)

	assert.Equal(t, src.Data, dst.Data)
}

func TestPadReflect(t *testing.T) {
	tests := []struct {
		name   string
		src    *Tensor
		bottom int
		right  int
		want   []float32
	}{
		{
			name:   "no padding returns same tensor",
			src:    sequence(1, 1, 3),
			bottom: 0,
			right:  0,
			want:   []float32{0, 1, 2},
		},
		{
			name:   "right padding mirrors without edge",
			src:    sequence(1, 1, 3),
			bottom: 0,
			right:  2,
			want:   []float32{0, 1, 2, 1, 0},
		},
		{
			name:   "bottom padding mirrors rows",
			src:    sequence(1, 2, 2),
			bottom: 1,
			right:  0,
			want:   []float32{0, 1, 2, 3, 0, 1},
		},
		{
			name:   "padding wider than source bounces",
			src:    sequence(1, 1, 2),
			bottom: 0,
			right:  3,
			want:   []float32{0, 1, 0, 1, 0},
		},
		{
			name:   "single pixel repeats",
			src:    sequence(1, 1, 1),
			bottom: 1,
			right:  1,
			want:   []float32{0, 0, 0, 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.src.PadReflect(tc.bottom, tc.right)
			assert.Equal(t, tc.src.H+tc.bottom, got.H)
			assert.Equal(t, tc.src.W+tc.right, got.W)
			assert.Equal(t, tc.want, got.Data)
		})
	}
}
