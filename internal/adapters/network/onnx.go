package network

import (
	"context"
	"errors"
	"fmt"
	"pbox-upscaler/internal/core/domain"
	"strings"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNX evaluates an exported RRDBNet graph with ONNX Runtime. The session accepts inputs of any spatial size, so
// one session serves every tile shape.
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	arch       domain.Architecture
	inputName  string
	outputName string
}

func (n *ONNX) Scale() int {
	return n.arch.Scale
}

func (n *ONNX) Forward(ctx context.Context, in *domain.Tensor) (*domain.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if in.C != n.arch.InChannels {
		return nil, fmt.Errorf("%w: tile has %d channels, network takes %d", domain.ErrInference, in.C,
			n.arch.InChannels)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(in.C), int64(in.H), int64(in.W)), in.Data)
	if err != nil {
		return nil, classify(fmt.Errorf("error creating input tensor: %w", err))
	}
	defer input.Destroy()

	out := domain.NewTensor(n.arch.OutChannels, in.H*n.arch.Scale, in.W*n.arch.Scale)
	output, err := ort.NewTensor(ort.NewShape(1, int64(out.C), int64(out.H), int64(out.W)), out.Data)
	if err != nil {
		return nil, classify(fmt.Errorf("error creating output tensor: %w", err))
	}
	defer output.Destroy()

	if err := n.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, classify(fmt.Errorf("error running session: %w", err))
	}

	copy(out.Data, output.GetData())

	return out, nil
}

func (n *ONNX) Close() error {
	var errs []error
	if n.session != nil {
		errs = append(errs, n.session.Destroy())
		n.session = nil
	}
	if ort.IsInitialized() {
		errs = append(errs, ort.DestroyEnvironment())
	}

	log.Debug().Msg("released onnx session")

	return errors.Join(errs...)
}

var allocationFailures = []string{
	"failed to allocate memory",
	"bad_alloc",
	"out of memory",
	"cudaerrormemoryallocation",
}

// classify maps runtime errors onto the domain error kinds, separating allocation failures, which may succeed on
// retry, from everything else.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range allocationFailures {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrOutOfMemory, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrInference, err)
}
