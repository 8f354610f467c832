package port

import (
	"context"
	"pbox-upscaler/internal/core/domain"
)

type Network interface {
	// Forward evaluates the network on one CHW tile and returns a tile Scale() times larger on both axes.
	Forward(ctx context.Context, in *domain.Tensor) (*domain.Tensor, error)
	// Scale returns the factor the network was trained to enlarge by.
	Scale() int
	// Close releases the runtime resources held by the network.
	Close() error
}

type NetworkLoader interface {
	// Load resolves the checkpoint, verifies it against the expected architecture and returns a ready network.
	Load(ctx context.Context, checkpoint string) (Network, error)
}
