package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"pbox-upscaler/internal/adapters/codec"
	"pbox-upscaler/internal/adapters/converter"
	"pbox-upscaler/internal/adapters/handler"
	"pbox-upscaler/internal/adapters/network"
	"pbox-upscaler/internal/adapters/sender"
	"pbox-upscaler/internal/config"
	"pbox-upscaler/internal/core/domain/command"
	"pbox-upscaler/internal/core/port"
	"pbox-upscaler/internal/core/service"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	upscaleCommand = "upscale"
	serveCommand   = "serve"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run wires the upscaler and executes the selected command, returning the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	log.Logger = zerolog.New(stderr).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.Disabled)

	s := sender.NewStream(stdout, stderr)

	fs := config.NewFlagSet("upscaler")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		_ = s.NotifyAndReturnError(err)
		return 1
	}

	viper.Reset()
	v := viper.GetViper()
	config.SetDefaults(v)

	if err := config.BindFlags(v, fs); err != nil {
		_ = s.NotifyAndReturnError(err)
		return 1
	}

	configPath, _ := fs.GetString("config")
	if err := config.ReadFile(v, configPath); err != nil {
		_ = s.NotifyAndReturnError(fmt.Errorf("could not read config file: %w", err))
		return 1
	}

	cfg, err := config.Load(v)
	if err != nil {
		_ = s.NotifyAndReturnError(err)
		return 1
	}

	name := command.ParseCommand(fs.Args(), upscaleCommand)
	zerolog.SetGlobalLevel(cfg.Level(name))

	log.Info().Str("command", name).Str("model", cfg.Checkpoint).Msg("starting upscaler")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	upscaler := service.NewUpscaler(
		codec.NewBase64JPEG(cfg.JPEGQuality, cfg.MaxPixels),
		network.NewLoader(cfg.LibraryPath, cfg.Threads),
		func(n port.Network) port.ImageConverter {
			return converter.NewESRGAN(n, cfg.Inference)
		},
		cfg.Checkpoint,
		cfg.Server.MaxConcurrent,
		cfg.Server.AcquireTimeout)
	defer func() {
		if err := upscaler.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to release network")
		}
	}()

	authorizer, err := service.NewAuthorizer()
	if err != nil {
		_ = s.NotifyAndReturnError(err)
		return 1
	}

	httpHandler := handler.NewHTTP(upscaler, authorizer, cfg.Server.MaxBodyBytes, cfg.Timeout)
	srv := &http.Server{
		Handler:      httpHandler.Router(),
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	registry := &command.Registry{}
	registry.Register(command.NewUpscale(upscaler, s, stdin, upscaleCommand))
	registry.Register(command.NewServe(srv, upscaler, serveCommand))

	cmd, err := registry.Get(name)
	if err != nil {
		_ = s.NotifyAndReturnError(fmt.Errorf("%s %q, available: %s", err, name,
			strings.Join(registry.ListCommands(), ", ")))
		return 1
	}

	timeout := cfg.Timeout
	if name == serveCommand {
		timeout = command.DefaultShutdownTimeout
	}

	if err := cmd.Run(ctx, timeout); err != nil {
		if name != upscaleCommand {
			_ = s.NotifyAndReturnError(err)
		}
		return 1
	}

	return 0
}
