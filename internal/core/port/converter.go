package port

import (
	"context"
	"image"
)

type ImageConverter interface {
	// Upscale runs img through the super-resolution network and returns the enlarged image.
	Upscale(ctx context.Context, img image.Image) (image.Image, error)
}

type ImageCodec interface {
	// Decode parses base64 text, optionally wrapped in a data URL, into an image.
	Decode(text string) (image.Image, error)
	// Encode compresses img and returns it as base64 text.
	Encode(img image.Image) (string, error)
}
