package network

import (
	"encoding/json"
	"fmt"
	"pbox-upscaler/internal/core/domain"
)

// Metadata is the JSON sidecar written when a PyTorch checkpoint is exported to ONNX. It records which parameter
// set was exported and the hyperparameters of the network it was loaded into.
type Metadata struct {
	ParamsKey    string              `json:"params_key"`
	Architecture domain.Architecture `json:"architecture"`
}

func ParseMetadata(buf []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(buf, &meta); err != nil {
		return nil, fmt.Errorf("%w: unreadable checkpoint metadata: %w", domain.ErrWeightMismatch, err)
	}
	return &meta, nil
}

// Validate requires an exact match with arch; there is no partial loading.
func (m *Metadata) Validate(arch domain.Architecture) error {
	if m.ParamsKey != domain.ParamsKey {
		return fmt.Errorf("%w: checkpoint exported from %q, want %q", domain.ErrWeightMismatch, m.ParamsKey,
			domain.ParamsKey)
	}

	if m.Architecture != arch {
		return fmt.Errorf("%w: checkpoint architecture %+v, want %+v", domain.ErrWeightMismatch, m.Architecture,
			arch)
	}

	return nil
}
