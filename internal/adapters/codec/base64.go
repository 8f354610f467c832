// Package codec converts between base64 text and decoded images.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"pbox-upscaler/internal/core/domain"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	// Register formats beyond the ones imaging already pulls in.
	_ "golang.org/x/image/webp"
)

const DefaultJPEGQuality = 90

type Base64JPEG struct {
	quality   int
	maxPixels int
}

// NewBase64JPEG returns a codec writing JPEGs at quality and refusing inputs larger than maxPixels. Values out of
// range fall back to the defaults.
func NewBase64JPEG(quality, maxPixels int) *Base64JPEG {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if maxPixels <= 0 {
		maxPixels = domain.DefaultMaxPixels
	}
	return &Base64JPEG{quality: quality, maxPixels: maxPixels}
}

// Decode accepts plain base64 or a data URL, with or without padding. Whitespace anywhere in the text is
// ignored, so wrapped output of base64 tools decodes as well. The image header is checked against the pixel
// limit before any pixel data is decoded.
func (c *Base64JPEG) Decode(text string) (image.Image, error) {
	payload, err := stripDataURL(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}

	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrDecode)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, rawErr := base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
		}
		data = raw
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(c.maxPixels) {
		return nil, fmt.Errorf("%w: %s image of %dx%d exceeds the limit of %d pixels", domain.ErrDecode,
			format, cfg.Width, cfg.Height, c.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", domain.ErrDecode)
	}

	log.Debug().Int("bytes", len(data)).Int("width", b.Dx()).Int("height", b.Dy()).Msg("decoded image")

	return img, nil
}

// Encode writes img as a JPEG. Transparent regions are composited onto white, as JPEG carries no alpha.
func (c *Base64JPEG) Encode(img image.Image) (string, error) {
	if !opaque(img) {
		b := img.Bounds()
		img = imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return "", fmt.Errorf("error encoding jpeg %w", err)
	}

	log.Debug().Int("bytes", buf.Len()).Int("quality", c.quality).Msg("encoded image")

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func stripDataURL(text string) (string, error) {
	if !strings.HasPrefix(text, "data:") {
		return text, nil
	}

	header, payload, found := strings.Cut(text, ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return "", fmt.Errorf("%w: data URL is not base64 encoded", domain.ErrDecode)
	}

	return payload, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
