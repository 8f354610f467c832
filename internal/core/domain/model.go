package domain

// Architecture holds the hyperparameters of an RRDBNet generator.
type Architecture struct {
	InChannels   int `json:"num_in_ch"`
	OutChannels  int `json:"num_out_ch"`
	Features     int `json:"num_feat"`
	Blocks       int `json:"num_block"`
	GrowChannels int `json:"num_grow_ch"`
	Scale        int `json:"scale"`
}

// RealESRGANx4plus is the only architecture the upscaler accepts checkpoints for.
var RealESRGANx4plus = Architecture{
	InChannels:   3,
	OutChannels:  3,
	Features:     64,
	Blocks:       23,
	GrowChannels: 32,
	Scale:        4,
}

// ParamsKey names the exponential-moving-average weight set the checkpoint must have been exported from.
const ParamsKey = "params_ema"

type AlphaUpsampler string

const (
	AlphaNetwork AlphaUpsampler = "network"
	AlphaLinear  AlphaUpsampler = "linear"
)

// DefaultMaxPixels bounds the decoded input size. At 4x every input pixel costs about 200 bytes of float32 output.
const DefaultMaxPixels = 2048 * 2048

// DefaultMaxTensorBytes bounds the largest tensor a single upscale may allocate.
const DefaultMaxTensorBytes = 4 << 30

type InferenceOptions struct {
	Tile     int
	TilePad  int
	PrePad   int
	Half     bool
	OutScale float64
	Alpha    AlphaUpsampler
	// MaxTensorBytes caps the stitched output tensor; 0 disables the check.
	MaxTensorBytes int64
}

func DefaultInferenceOptions() InferenceOptions {
	return InferenceOptions{
		Tile:           400,
		TilePad:        10,
		PrePad:         0,
		Half:           false,
		OutScale:       2,
		Alpha:          AlphaNetwork,
		MaxTensorBytes: DefaultMaxTensorBytes,
	}
}

// SlotStats is a snapshot of how the service's inference slots have been used.
type SlotStats struct {
	Size            int   `json:"slots"`
	InUse           int   `json:"slots_in_use"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	AcquireFailures int64 `json:"acquire_failures"`
}
