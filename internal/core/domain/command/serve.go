package command

import (
	"context"
	"fmt"
	"pbox-upscaler/internal/core/port"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultShutdownTimeout = 30 * time.Second

type Warmer interface {
	Warmup(ctx context.Context) error
}

// Serve loads the network once and exposes the upscaler over HTTP until the context is cancelled.
type Serve struct {
	server  port.Server
	warmer  Warmer
	command string
}

func NewServe(server port.Server, warmer Warmer, command string) *Serve {
	return &Serve{server: server, warmer: warmer, command: command}
}

func (s *Serve) GetCommand() string {
	return s.command
}

// Run blocks while the server is running. The timeout bounds graceful shutdown, not the server's lifetime.
func (s *Serve) Run(ctx context.Context, timeout time.Duration) error {
	l := log.With().Str("command", s.GetCommand()).Logger()

	if err := s.warmer.Warmup(ctx); err != nil {
		return fmt.Errorf("failed to load network: %w", err)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- s.server.ListenAndServe()
	}()

	l.Info().Msg("server listening")

	select {
	case err := <-errs:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	l.Info().Dur("timeout", timeout).Msg("shutting down")

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	<-errs

	return nil
}
