package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "out of memory", err: fmt.Errorf("%w: tile 0,0", ErrOutOfMemory), want: true},
		{name: "busy", err: ErrBusy, want: true},
		{name: "decode", err: fmt.Errorf("%w: bad padding", ErrDecode), want: false},
		{name: "path", err: ErrPathResolution, want: false},
		{name: "weights", err: ErrWeightMismatch, want: false},
		{name: "inference", err: ErrInference, want: false},
		{name: "foreign error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestDefaultInferenceOptions(t *testing.T) {
	opts := DefaultInferenceOptions()

	assert.Equal(t, 400, opts.Tile)
	assert.Equal(t, 10, opts.TilePad)
	assert.Equal(t, 0, opts.PrePad)
	assert.False(t, opts.Half)
	assert.InDelta(t, 2.0, opts.OutScale, 0)
	assert.Equal(t, AlphaNetwork, opts.Alpha)
	assert.Equal(t, int64(DefaultMaxTensorBytes), opts.MaxTensorBytes)
}
