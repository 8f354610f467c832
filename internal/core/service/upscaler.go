package service

import (
	"context"
	"fmt"
	"pbox-upscaler/internal/core/domain"
	"pbox-upscaler/internal/core/port"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSlots          = 1
	DefaultAcquireTimeout = 5 * time.Second
)

// ConverterFactory builds the image converter that drives a loaded network.
type ConverterFactory func(network port.Network) port.ImageConverter

// Upscaler runs the decode, upscale, encode pipeline. The network is loaded on first use and shared by every
// later call; a failed load is remembered and returned to all callers. Loading is not cut short by the caller's
// cancellation, since its result outlives that caller.
type Upscaler struct {
	codec      port.ImageCodec
	loader     port.NetworkLoader
	factory    ConverterFactory
	checkpoint string

	once      sync.Once
	network   port.Network
	converter port.ImageConverter
	loadErr   error

	slots          chan struct{}
	acquireTimeout time.Duration
	stats          *slotStats
}

type slotStats struct {
	mu sync.RWMutex
	domain.SlotStats
}

func NewUpscaler(codec port.ImageCodec, loader port.NetworkLoader, factory ConverterFactory, checkpoint string,
	slots int, acquireTimeout time.Duration) *Upscaler {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}

	return &Upscaler{
		codec:          codec,
		loader:         loader,
		factory:        factory,
		checkpoint:     checkpoint,
		slots:          make(chan struct{}, slots),
		acquireTimeout: acquireTimeout,
		stats:          &slotStats{SlotStats: domain.SlotStats{Size: slots}},
	}
}

// Warmup loads the network ahead of the first request.
func (u *Upscaler) Warmup(ctx context.Context) error {
	_, err := u.load(ctx)
	return err
}

func (u *Upscaler) load(ctx context.Context) (port.ImageConverter, error) {
	u.once.Do(func() {
		start := time.Now()
		u.network, u.loadErr = u.loader.Load(context.WithoutCancel(ctx), u.checkpoint)
		if u.loadErr != nil {
			return
		}
		u.converter = u.factory(u.network)
		log.Debug().Dur("took", time.Since(start)).Msg("network ready")
	})

	return u.converter, u.loadErr
}

func (u *Upscaler) UpscaleBase64(ctx context.Context, text string) (string, error) {
	start := time.Now()

	img, err := u.codec.Decode(text)
	if err != nil {
		return "", err
	}
	decoded := time.Now()

	converter, err := u.load(ctx)
	if err != nil {
		return "", err
	}
	loaded := time.Now()

	if err := u.acquire(ctx); err != nil {
		return "", err
	}
	upscaled, err := converter.Upscale(ctx, img)
	u.release()
	if err != nil {
		return "", err
	}
	inferred := time.Now()

	encoded, err := u.codec.Encode(upscaled)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	log.Debug().
		Dur("decode", decoded.Sub(start)).
		Dur("load", loaded.Sub(decoded)).
		Dur("inference", inferred.Sub(loaded)).
		Dur("encode", time.Since(inferred)).
		Dur("total", time.Since(start)).
		Msg("processing times")

	return encoded, nil
}

func (u *Upscaler) acquire(ctx context.Context) error {
	timer := time.NewTimer(u.acquireTimeout)
	defer timer.Stop()

	select {
	case u.slots <- struct{}{}:
		u.stats.mu.Lock()
		u.stats.InUse++
		u.stats.TotalAcquired++
		u.stats.mu.Unlock()
		return nil
	case <-timer.C:
		u.stats.mu.Lock()
		u.stats.AcquireFailures++
		u.stats.mu.Unlock()
		return fmt.Errorf("%w: waited %s", domain.ErrBusy, u.acquireTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Upscaler) release() {
	<-u.slots

	u.stats.mu.Lock()
	u.stats.InUse--
	u.stats.TotalReleased++
	u.stats.mu.Unlock()
}

func (u *Upscaler) Stats() domain.SlotStats {
	u.stats.mu.RLock()
	defer u.stats.mu.RUnlock()
	return u.stats.SlotStats
}

// Close waits for in-flight inferences to finish, then releases the network if it was loaded. Later calls fail
// to load or wait for a slot until they time out.
func (u *Upscaler) Close() error {
	u.once.Do(func() {
		u.loadErr = fmt.Errorf("%w: upscaler closed", domain.ErrInference)
	})

	for i := 0; i < cap(u.slots); i++ {
		u.slots <- struct{}{}
	}

	if u.network == nil {
		return nil
	}
	return u.network.Close()
}
