package command

import (
	"context"
	"fmt"
	"io"
	"pbox-upscaler/internal/core/port"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

// Upscale is the one-shot mode: read one base64 image from input, write the upscaled image through the sender.
// Output is all or nothing; on failure only the error is reported.
type Upscale struct {
	service port.UpscaleService
	sender  port.ResultSender
	input   io.Reader
	command string
}

func NewUpscale(service port.UpscaleService, sender port.ResultSender, input io.Reader, command string) *Upscale {
	return &Upscale{service: service, sender: sender, input: input, command: command}
}

func (u *Upscale) GetCommand() string {
	return u.command
}

func (u *Upscale) Run(ctx context.Context, timeout time.Duration) error {
	id, err := uuid.NewV4()
	if err != nil {
		return u.sender.NotifyAndReturnError(err)
	}

	l := log.With().
		Str("runId", id.String()).
		Str("command", u.GetCommand()).
		Logger()

	l.Info().Msg("handling request")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	buf, err := io.ReadAll(u.input)
	if err != nil {
		return u.sender.NotifyAndReturnError(fmt.Errorf("failed to read input: %w", err))
	}

	l.Debug().Int("bytes", len(buf)).Msg("read input")

	encoded, err := u.service.UpscaleBase64(ctx, strings.TrimSpace(string(buf)))
	if err != nil {
		l.Debug().Err(err).Msg("upscale failed")
		return u.sender.NotifyAndReturnError(err)
	}

	if err := u.sender.SendResult(encoded); err != nil {
		return u.sender.NotifyAndReturnError(err)
	}

	l.Info().Int("bytes", len(encoded)).Msg("sent result")

	return nil
}
