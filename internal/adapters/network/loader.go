package network

import (
	"context"
	"fmt"
	"pbox-upscaler/internal/adapters/file"
	"pbox-upscaler/internal/core/domain"
	"pbox-upscaler/internal/core/port"
	"runtime"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

type Loader struct {
	libraryPath string
	threads     int
	arch        domain.Architecture
}

// NewLoader returns a loader for RealESRGAN x4plus checkpoints. An empty libraryPath leaves ONNX Runtime to find
// its shared library on its own; threads <= 0 uses one thread per CPU.
func NewLoader(libraryPath string, threads int) *Loader {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Loader{libraryPath: libraryPath, threads: threads, arch: domain.RealESRGANx4plus}
}

func (l *Loader) Load(ctx context.Context, checkpoint string) (port.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := file.ResolveCheckpoint(checkpoint)
	if err != nil {
		return nil, err
	}

	buf, err := file.ReadFile(file.MetadataPath(path))
	if err != nil {
		return nil, err
	}

	meta, err := ParseMetadata(buf)
	if err != nil {
		return nil, err
	}

	if err := meta.Validate(l.arch); err != nil {
		return nil, err
	}

	if err := l.initEnvironment(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable graph: %w", domain.ErrWeightMismatch, err)
	}

	if err := validateIO(inputs, outputs, l.arch); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(l.threads); err != nil {
		return nil, fmt.Errorf("error setting thread count: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{inputs[0].Name}, []string{outputs[0].Name}, options)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating session: %w", domain.ErrWeightMismatch, err)
	}

	log.Info().
		Str("path", path).
		Str("input", inputs[0].Name).
		Str("output", outputs[0].Name).
		Int("threads", l.threads).
		Msg("loaded network")

	return &ONNX{
		session:    session,
		arch:       l.arch,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

func (l *Loader) initEnvironment() error {
	if ort.IsInitialized() {
		return nil
	}

	if l.libraryPath != "" {
		ort.SetSharedLibraryPath(l.libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnx environment: %w", err)
	}

	return nil
}

// validateIO checks that the graph takes and returns a single NCHW float tensor with the channel counts of arch.
// Spatial dimensions are usually symbolic (-1) and are not checked.
func validateIO(inputs, outputs []ort.InputOutputInfo, arch domain.Architecture) error {
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("%w: graph has %d inputs and %d outputs, want 1 and 1", domain.ErrWeightMismatch,
			len(inputs), len(outputs))
	}

	check := func(kind string, info ort.InputOutputInfo, channels int) error {
		if info.OrtValueType != ort.ONNXTypeTensor || info.DataType != ort.TensorElementDataTypeFloat {
			return fmt.Errorf("%w: %s %q is not a float32 tensor", domain.ErrWeightMismatch, kind, info.Name)
		}
		if len(info.Dimensions) != 4 {
			return fmt.Errorf("%w: %s %q has shape %v, want NCHW", domain.ErrWeightMismatch, kind, info.Name,
				info.Dimensions)
		}
		if info.Dimensions[1] != int64(channels) {
			return fmt.Errorf("%w: %s %q has %d channels, want %d", domain.ErrWeightMismatch, kind, info.Name,
				info.Dimensions[1], channels)
		}
		return nil
	}

	if err := check("input", inputs[0], arch.InChannels); err != nil {
		return err
	}

	return check("output", outputs[0], arch.OutChannels)
}
