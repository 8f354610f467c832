package port

import (
	"context"
	"pbox-upscaler/internal/core/domain"
)

type UpscaleService interface {
	// UpscaleBase64 decodes text, upscales the image and returns it re-encoded as base64.
	UpscaleBase64(ctx context.Context, text string) (string, error)
	// Stats returns a snapshot of the inference slot counters.
	Stats() domain.SlotStats
}

type Authorizer interface {
	// IsAuthorized reports whether token may use the service.
	IsAuthorized(token string) bool
}

type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}
