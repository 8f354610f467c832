// Package config collects settings from defaults, an optional TOML file, UPSCALER_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"pbox-upscaler/internal/core/domain"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "UPSCALER"
	ConfigName = "upscaler"
)

type Config struct {
	LogLevel    string
	Checkpoint  string
	LibraryPath string
	Threads     int
	Inference   domain.InferenceOptions
	MaxPixels   int
	JPEGQuality int
	Timeout     time.Duration
	Server      Server
}

type Server struct {
	Addr           string
	MaxBodyBytes   int64
	MaxConcurrent  int
	AcquireTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func SetDefaults(v *viper.Viper) {
	opts := domain.DefaultInferenceOptions()

	v.SetDefault("log.level", "")
	v.SetDefault("model.path", "public/models/RealESRGAN_x4plus.onnx")
	v.SetDefault("onnx.library_path", "")
	v.SetDefault("onnx.threads", 0)
	v.SetDefault("inference.tile", opts.Tile)
	v.SetDefault("inference.tile_pad", opts.TilePad)
	v.SetDefault("inference.pre_pad", opts.PrePad)
	v.SetDefault("inference.half", opts.Half)
	v.SetDefault("inference.outscale", opts.OutScale)
	v.SetDefault("inference.alpha_upsampler", string(opts.Alpha))
	v.SetDefault("inference.max_tensor_bytes", opts.MaxTensorBytes)
	v.SetDefault("input.max_pixels", domain.DefaultMaxPixels)
	v.SetDefault("output.jpeg_quality", 90)
	v.SetDefault("handler.timeout", "0s")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.max_concurrent", 1)
	v.SetDefault("server.acquire_timeout", "5s")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.api_tokens", []string{})
}

// NewFlagSet declares the command line flags; each flag overrides the config key it is bound to.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a TOML config file")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("model", "", "path to the RealESRGAN_x4plus ONNX checkpoint")
	fs.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	fs.Int("threads", 0, "intra-op threads, 0 for one per CPU")
	fs.Int("tile", 0, "tile size in pixels, 0 disables tiling")
	fs.Int("tile-pad", 0, "context pixels around each tile")
	fs.Int("pre-pad", 0, "reflect padding added before inference")
	fs.Float64("outscale", 0, "output scale relative to the input")
	fs.String("alpha-upsampler", "", "alpha channel upsampler: network or linear")
	fs.Int("quality", 0, "JPEG quality of the result")
	fs.Int("max-pixels", 0, "largest accepted input, in pixels")
	fs.Duration("timeout", 0, "abort a single upscale after this long, 0 for no limit")
	fs.String("addr", "", "listen address in serve mode")
	return fs
}

var flagKeys = map[string]string{
	"log-level":       "log.level",
	"model":           "model.path",
	"onnx-lib":        "onnx.library_path",
	"threads":         "onnx.threads",
	"tile":            "inference.tile",
	"tile-pad":        "inference.tile_pad",
	"pre-pad":         "inference.pre_pad",
	"outscale":        "inference.outscale",
	"alpha-upsampler": "inference.alpha_upsampler",
	"quality":         "output.jpeg_quality",
	"max-pixels":      "input.max_pixels",
	"timeout":         "handler.timeout",
	"addr":            "server.addr",
}

func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// ReadFile loads the config file named by path, or searches the working directory and /etc/upscaler when path
// is empty. A missing file is only an error when it was named explicitly.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	v.SetConfigName(ConfigName)
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/upscaler")

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func Load(v *viper.Viper) (*Config, error) {
	timeout, err := time.ParseDuration(v.GetString("handler.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid handler timeout: %w", err)
	}

	acquireTimeout, err := time.ParseDuration(v.GetString("server.acquire_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid acquire timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(v.GetString("server.read_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(v.GetString("server.write_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}

	cfg := &Config{
		LogLevel:    v.GetString("log.level"),
		Checkpoint:  v.GetString("model.path"),
		LibraryPath: v.GetString("onnx.library_path"),
		Threads:     v.GetInt("onnx.threads"),
		Inference: domain.InferenceOptions{
			Tile:           v.GetInt("inference.tile"),
			TilePad:        v.GetInt("inference.tile_pad"),
			PrePad:         v.GetInt("inference.pre_pad"),
			Half:           v.GetBool("inference.half"),
			OutScale:       v.GetFloat64("inference.outscale"),
			Alpha:          domain.AlphaUpsampler(strings.ToLower(v.GetString("inference.alpha_upsampler"))),
			MaxTensorBytes: v.GetInt64("inference.max_tensor_bytes"),
		},
		MaxPixels:   v.GetInt("input.max_pixels"),
		JPEGQuality: v.GetInt("output.jpeg_quality"),
		Timeout:     timeout,
		Server: Server{
			Addr:           v.GetString("server.addr"),
			MaxBodyBytes:   v.GetInt64("server.max_body_bytes"),
			MaxConcurrent:  v.GetInt("server.max_concurrent"),
			AcquireTimeout: acquireTimeout,
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Inference.Tile < 0:
		return errors.New("inference.tile must not be negative")
	case c.Inference.TilePad < 0:
		return errors.New("inference.tile_pad must not be negative")
	case c.Inference.PrePad < 0:
		return errors.New("inference.pre_pad must not be negative")
	case c.Inference.Half:
		return errors.New("inference.half is not supported, export a float32 graph")
	case c.Inference.OutScale <= 0:
		return errors.New("inference.outscale must be positive")
	case c.Inference.Alpha != domain.AlphaNetwork && c.Inference.Alpha != domain.AlphaLinear:
		return fmt.Errorf("unknown inference.alpha_upsampler %q", c.Inference.Alpha)
	case c.Inference.MaxTensorBytes < 0:
		return errors.New("inference.max_tensor_bytes must not be negative")
	case c.MaxPixels < 1:
		return errors.New("input.max_pixels must be positive")
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return errors.New("output.jpeg_quality must be between 1 and 100")
	case c.Timeout < 0:
		return errors.New("handler.timeout must not be negative")
	}
	return nil
}

// Level picks the zerolog level for a command. Without an explicit setting the one-shot command stays silent so
// that stderr carries only its error line.
func (c *Config) Level(command string) zerolog.Level {
	switch c.LogLevel {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}

	if command == "serve" {
		return zerolog.InfoLevel
	}
	return zerolog.Disabled
}
