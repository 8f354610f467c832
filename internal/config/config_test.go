package config

import (
	"os"
	"path/filepath"
	"pbox-upscaler/internal/core/domain"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	fs := NewFlagSet("upscaler")
	require.NoError(t, fs.Parse(args))
	require.NoError(t, BindFlags(v, fs))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "public/models/RealESRGAN_x4plus.onnx", cfg.Checkpoint)
	assert.Equal(t, domain.DefaultInferenceOptions(), cfg.Inference)
	assert.Equal(t, domain.DefaultMaxPixels, cfg.MaxPixels)
	assert.Equal(t, 90, cfg.JPEGQuality)
	assert.Zero(t, cfg.Timeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 1, cfg.Server.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.Server.AcquireTimeout)
}

func TestLoadFlagsOverride(t *testing.T) {
	v := newViper(t, "--model", "/srv/model.onnx", "--tile", "0", "--outscale", "4", "--quality", "75",
		"--timeout", "1m", "--alpha-upsampler", "LINEAR", "--max-pixels", "1000000", "serve")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/srv/model.onnx", cfg.Checkpoint)
	assert.Equal(t, 0, cfg.Inference.Tile)
	assert.InDelta(t, 4.0, cfg.Inference.OutScale, 0)
	assert.Equal(t, domain.AlphaLinear, cfg.Inference.Alpha)
	assert.Equal(t, 75, cfg.JPEGQuality)
	assert.Equal(t, 1000000, cfg.MaxPixels)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upscaler.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[model]
path = "/opt/models/x4.onnx"

[inference]
tile = 256

[server]
api_tokens = ["secret"]
`), 0o600))

	v := newViper(t)
	require.NoError(t, ReadFile(v, path))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/opt/models/x4.onnx", cfg.Checkpoint)
	assert.Equal(t, 256, cfg.Inference.Tile)
	assert.Equal(t, []string{"secret"}, v.GetStringSlice("server.api_tokens"))
}

func TestReadFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	v := newViper(t)
	assert.NoError(t, ReadFile(v, ""))
	assert.Error(t, ReadFile(viper.New(), filepath.Join(t.TempDir(), "missing.toml")))
}

func TestReadFileEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPSCALER_MODEL_PATH", "/env/model.onnx")

	v := newViper(t)
	require.NoError(t, ReadFile(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/env/model.onnx", cfg.Checkpoint)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "negative tile", key: "inference.tile", val: -1},
		{name: "negative tile pad", key: "inference.tile_pad", val: -1},
		{name: "negative pre pad", key: "inference.pre_pad", val: -2},
		{name: "half precision", key: "inference.half", val: true},
		{name: "zero outscale", key: "inference.outscale", val: 0},
		{name: "unknown alpha upsampler", key: "inference.alpha_upsampler", val: "bicubic"},
		{name: "quality too high", key: "output.jpeg_quality", val: 101},
		{name: "zero max pixels", key: "input.max_pixels", val: 0},
		{name: "negative tensor budget", key: "inference.max_tensor_bytes", val: -1},
		{name: "bad timeout", key: "handler.timeout", val: "soon"},
		{name: "negative timeout", key: "handler.timeout", val: "-1s"},
		{name: "bad acquire timeout", key: "server.acquire_timeout", val: "x"},
		{name: "bad read timeout", key: "server.read_timeout", val: "x"},
		{name: "bad write timeout", key: "server.write_timeout", val: "x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tc.key, tc.val)

			cfg, err := Load(v)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		command string
		want    zerolog.Level
	}{
		{name: "explicit debug", level: "debug", command: "upscale", want: zerolog.DebugLevel},
		{name: "explicit error", level: "error", command: "serve", want: zerolog.ErrorLevel},
		{name: "silent one-shot", level: "", command: "upscale", want: zerolog.Disabled},
		{name: "serve defaults to info", level: "", command: "serve", want: zerolog.InfoLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tc.level}
			assert.Equal(t, tc.want, cfg.Level(tc.command))
		})
	}
}
