package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"pbox-upscaler/internal/adapters/codec"
	"pbox-upscaler/internal/adapters/converter"
	"pbox-upscaler/internal/core/domain"
	"pbox-upscaler/internal/core/port"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replicatingNetwork enlarges its input by pixel replication, standing in for a 4x generator.
type replicatingNetwork struct{}

func (replicatingNetwork) Forward(_ context.Context, in *domain.Tensor) (*domain.Tensor, error) {
	const scale = 4
	out := domain.NewTensor(in.C, in.H*scale, in.W*scale)
	for c := 0; c < out.C; c++ {
		for y := 0; y < out.H; y++ {
			for x := 0; x < out.W; x++ {
				out.Set(c, y, x, in.At(c, y/scale, x/scale))
			}
		}
	}
	return out, nil
}

func (replicatingNetwork) Scale() int {
	return 4
}

func (replicatingNetwork) Close() error {
	return nil
}

type replicatingLoader struct{}

func (replicatingLoader) Load(_ context.Context, _ string) (port.Network, error) {
	return replicatingNetwork{}, nil
}

func newPipeline() *Upscaler {
	factory := func(n port.Network) port.ImageConverter {
		return converter.NewESRGAN(n, domain.DefaultInferenceOptions())
	}
	return NewUpscaler(codec.NewBase64JPEG(codec.DefaultJPEGQuality, domain.DefaultMaxPixels), replicatingLoader{},
		factory, "model.onnx", 1, time.Second)
}

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestPipelineDoublesAndIsDeterministic(t *testing.T) {
	tests := []struct {
		name      string
		img       image.Image
		wantModel color.Model
	}{
		{
			name: "rgb",
			img: func() image.Image {
				img := image.NewNRGBA(image.Rect(0, 0, 7, 5))
				for y := 0; y < 5; y++ {
					for x := 0; x < 7; x++ {
						img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 40), B: 90, A: 0xff})
					}
				}
				return img
			}(),
			wantModel: color.YCbCrModel,
		},
		{
			name: "transparent",
			img: func() image.Image {
				img := image.NewNRGBA(image.Rect(0, 0, 7, 5))
				img.SetNRGBA(3, 2, color.NRGBA{R: 200, A: 0x80})
				return img
			}(),
			wantModel: color.YCbCrModel,
		},
		{
			name: "grey",
			img: func() image.Image {
				img := image.NewGray(image.Rect(0, 0, 7, 5))
				for i := range img.Pix {
					img.Pix[i] = uint8(i * 6)
				}
				return img
			}(),
			wantModel: color.GrayModel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := newPipeline()
			input := encodePNG(t, tc.img)

			first, err := u.UpscaleBase64(context.Background(), input)
			require.NoError(t, err)
			second, err := u.UpscaleBase64(context.Background(), input)
			require.NoError(t, err)

			assert.Equal(t, first, second)

			data, err := base64.StdEncoding.DecodeString(first)
			require.NoError(t, err)
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 14, cfg.Width)
			assert.Equal(t, 10, cfg.Height)
			assert.Equal(t, tc.wantModel, cfg.ColorModel)
		})
	}
}

func TestPipelineRejectsOversizedInput(t *testing.T) {
	u := NewUpscaler(codec.NewBase64JPEG(codec.DefaultJPEGQuality, 7*5-1), replicatingLoader{},
		func(n port.Network) port.ImageConverter {
			return converter.NewESRGAN(n, domain.DefaultInferenceOptions())
		}, "model.onnx", 1, time.Second)

	_, err := u.UpscaleBase64(context.Background(), encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 7, 5))))
	require.ErrorIs(t, err, domain.ErrDecode)
}
