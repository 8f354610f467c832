package converter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"pbox-upscaler/internal/core/domain"
	"pbox-upscaler/internal/core/port"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
)

// ESRGAN upscales images with a super-resolution network, splitting large inputs into overlapping tiles so that
// memory use stays bounded by the tile size rather than the image size.
type ESRGAN struct {
	network port.Network
	opts    domain.InferenceOptions
}

func NewESRGAN(network port.Network, opts domain.InferenceOptions) *ESRGAN {
	return &ESRGAN{network: network, opts: opts}
}

func (e *ESRGAN) Upscale(ctx context.Context, img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInference)
	}

	scale := e.network.Scale()
	if err := e.checkBudget(3, bounds.Dy()*scale, bounds.Dx()*scale); err != nil {
		return nil, err
	}

	start := time.Now()
	grey := isGrey(img)
	src := imaging.Clone(img)
	rgb, alpha := split(src)

	out, err := e.enhance(ctx, rgb)
	if err != nil {
		return nil, err
	}

	var outAlpha *image.Gray
	if alpha != nil {
		outAlpha, err = e.enhanceAlpha(ctx, alpha)
		if err != nil {
			return nil, err
		}
	}

	result := merge(out, outAlpha)

	if e.opts.OutScale > 0 && e.opts.OutScale != float64(scale) {
		w := int(float64(bounds.Dx()) * e.opts.OutScale)
		h := int(float64(bounds.Dy()) * e.opts.OutScale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("%w: output scale %.2f collapses %dx%d image", domain.ErrInference,
				e.opts.OutScale, bounds.Dx(), bounds.Dy())
		}
		result = imaging.Resize(result, w, h, imaging.Lanczos)
	}

	var final image.Image = result
	if grey {
		final = toGrey(result)
	}

	log.Debug().
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("outWidth", final.Bounds().Dx()).
		Int("outHeight", final.Bounds().Dy()).
		Bool("alpha", alpha != nil).
		Bool("grey", grey).
		Dur("took", time.Since(start)).
		Msg("upscaled image")

	return final, nil
}

// enhance runs a normalised tensor through the network, padding it first so its dimensions suit the network and
// cropping the padding back off the result.
func (e *ESRGAN) enhance(ctx context.Context, in *domain.Tensor) (*domain.Tensor, error) {
	scale := e.network.Scale()

	padded := in
	if e.opts.PrePad > 0 {
		padded = padded.PadReflect(e.opts.PrePad, e.opts.PrePad)
	}

	if mod := modFor(scale); mod > 0 {
		padded = padded.PadReflect(padFor(padded.H, mod), padFor(padded.W, mod))
	}

	if err := e.checkBudget(in.C, padded.H*scale, padded.W*scale); err != nil {
		return nil, err
	}

	var (
		out *domain.Tensor
		err error
	)
	if e.opts.Tile > 0 {
		out, err = e.tileProcess(ctx, padded, scale)
	} else {
		out, err = e.forward(ctx, padded, scale)
	}
	if err != nil {
		return nil, err
	}

	return out.Crop(0, in.H*scale, 0, in.W*scale), nil
}

// checkBudget refuses outputs whose float32 tensor would exceed MaxTensorBytes.
func (e *ESRGAN) checkBudget(c, h, w int) error {
	if e.opts.MaxTensorBytes <= 0 {
		return nil
	}

	size := int64(c) * int64(h) * int64(w) * 4
	if size > e.opts.MaxTensorBytes {
		return fmt.Errorf("%w: %dx%d output needs %d bytes, limit is %d", domain.ErrOutOfMemory, w, h, size,
			e.opts.MaxTensorBytes)
	}
	return nil
}

// tileProcess evaluates the network tile by tile. Each tile is fed with TilePad pixels of surrounding context and
// only its unpadded centre is kept, so seams between tiles do not show.
func (e *ESRGAN) tileProcess(ctx context.Context, in *domain.Tensor, scale int) (*domain.Tensor, error) {
	tile := e.opts.Tile
	pad := e.opts.TilePad

	out := domain.NewTensor(in.C, in.H*scale, in.W*scale)
	tilesX := (in.W + tile - 1) / tile
	tilesY := (in.H + tile - 1) / tile

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			startX := tx * tile
			endX := min(startX+tile, in.W)
			startY := ty * tile
			endY := min(startY+tile, in.H)

			startXPad := max(startX-pad, 0)
			endXPad := min(endX+pad, in.W)
			startYPad := max(startY-pad, 0)
			endYPad := min(endY+pad, in.H)

			tileOut, err := e.forward(ctx, in.Crop(startYPad, endYPad, startXPad, endXPad), scale)
			if err != nil {
				return nil, fmt.Errorf("tile %d/%d: %w", ty*tilesX+tx+1, tilesX*tilesY, err)
			}

			offX := (startX - startXPad) * scale
			offY := (startY - startYPad) * scale
			kept := tileOut.Crop(offY, offY+(endY-startY)*scale, offX, offX+(endX-startX)*scale)
			out.Paste(kept, startY*scale, startX*scale)

			log.Debug().
				Int("tile", ty*tilesX+tx+1).
				Int("tiles", tilesX*tilesY).
				Msg("processed tile")
		}
	}

	return out, nil
}

func (e *ESRGAN) forward(ctx context.Context, in *domain.Tensor, scale int) (*domain.Tensor, error) {
	out, err := e.network.Forward(ctx, in)
	if err != nil {
		if errors.Is(err, domain.ErrOutOfMemory) || errors.Is(err, domain.ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}

	if out.C != in.C || out.H != in.H*scale || out.W != in.W*scale {
		return nil, fmt.Errorf("%w: network returned %dx%dx%d for %dx%dx%d input", domain.ErrInference,
			out.C, out.H, out.W, in.C, in.H, in.W)
	}

	return out, nil
}

// enhanceAlpha upscales the alpha plane to the network's scale, either by treating it as a grey image for the
// network or by plain bilinear interpolation.
func (e *ESRGAN) enhanceAlpha(ctx context.Context, alpha *image.Gray) (*image.Gray, error) {
	scale := e.network.Scale()
	w := alpha.Bounds().Dx()
	h := alpha.Bounds().Dy()

	if e.opts.Alpha == domain.AlphaLinear {
		scaled, ok := resize.Resize(uint(w*scale), uint(h*scale), alpha, resize.Bilinear).(*image.Gray)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected alpha resize result", domain.ErrInference)
		}
		return scaled, nil
	}

	in := domain.NewTensor(3, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32(alpha.GrayAt(x, y).Y) / 255
			in.Set(0, y, x, v)
			in.Set(1, y, x, v)
			in.Set(2, y, x, v)
		}
	}

	out, err := e.enhance(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("alpha channel: %w", err)
	}

	scaled := image.NewGray(image.Rect(0, 0, out.W, out.H))
	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			grey := 0.299*out.At(0, y, x) + 0.587*out.At(1, y, x) + 0.114*out.At(2, y, x)
			scaled.SetGray(x, y, color.Gray{Y: quantise(grey)})
		}
	}

	return scaled, nil
}

// split normalises the colour channels of img into a tensor and returns the alpha plane separately when img is
// not fully opaque.
func split(img *image.NRGBA) (*domain.Tensor, *image.Gray) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	rgb := domain.NewTensor(3, h, w)

	var alpha *image.Gray
	if !img.Opaque() {
		alpha = image.NewGray(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			rgb.Set(0, y, x, float32(px[0])/255)
			rgb.Set(1, y, x, float32(px[1])/255)
			rgb.Set(2, y, x, float32(px[2])/255)
			if alpha != nil {
				alpha.Pix[y*alpha.Stride+x] = px[3]
			}
		}
	}

	return rgb, alpha
}

func merge(rgb *domain.Tensor, alpha *image.Gray) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, rgb.W, rgb.H))
	for y := 0; y < rgb.H; y++ {
		for x := 0; x < rgb.W; x++ {
			i := y*out.Stride + x*4
			out.Pix[i] = quantise(rgb.At(0, y, x))
			out.Pix[i+1] = quantise(rgb.At(1, y, x))
			out.Pix[i+2] = quantise(rgb.At(2, y, x))
			out.Pix[i+3] = 0xff
			if alpha != nil {
				out.Pix[i+3] = alpha.Pix[y*alpha.Stride+x]
			}
		}
	}
	return out
}

// isGrey reports whether img carries a single luminance channel.
func isGrey(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	default:
		return false
	}
}

// toGrey collapses an upscaled RGB image back to luminance with the same weights used for the alpha plane.
func toGrey(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := img.Pix[y*img.Stride+x*4 : y*img.Stride+x*4+3]
			v := 0.299*float32(px[0]) + 0.587*float32(px[1]) + 0.114*float32(px[2])
			out.Pix[y*out.Stride+x] = quantise(v / 255)
		}
	}
	return out
}

func quantise(v float32) uint8 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(math.Round(float64(v) * 255))
}

// modFor returns the multiple both input dimensions must be padded to for networks that fold pixels into
// channels before their first layer.
func modFor(scale int) int {
	switch scale {
	case 2:
		return 2
	case 1:
		return 4
	default:
		return 0
	}
}

func padFor(n, mod int) int {
	if n%mod == 0 {
		return 0
	}
	return mod - n%mod
}
