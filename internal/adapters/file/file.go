package file

import (
	"fmt"
	"os"
	"path/filepath"
	"pbox-upscaler/internal/core/domain"
	"strings"

	"github.com/rs/zerolog/log"
)

// ResolveCheckpoint turns the configured checkpoint path into an absolute path to an existing regular file.
// Relative paths are taken against the working directory; no other location is searched.
func ResolveCheckpoint(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: no checkpoint path configured", domain.ErrPathResolution)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrPathResolution, err)
		log.Error().Err(err).Str("path", path).Send()
		return "", err
	}

	stat, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrPathResolution, err)
	}

	if !stat.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", domain.ErrPathResolution, abs)
	}

	log.Debug().Str("path", abs).Int64("bytes", stat.Size()).Msg("resolved checkpoint")

	return abs, nil
}

// MetadataPath returns the location of the JSON sidecar describing the checkpoint at path.
func MetadataPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
}

// ReadFile reads a file next to the checkpoint. A missing file is a path resolution failure.
func ReadFile(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrPathResolution, err)
		log.Debug().Err(err).Str("path", path).Msg("error reading file")
		return nil, err
	}

	return buf, nil
}
