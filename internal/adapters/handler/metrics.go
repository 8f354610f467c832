package handler

import (
	"net/http"
	"pbox-upscaler/internal/core/domain"
	"runtime"
	"runtime/metrics"
)

const kb = 1024

type metricsResponse struct {
	domain.SlotStats
	AllocatedKB uint64 `json:"allocated_kb"`
	HeapKB      uint64 `json:"heap_kb"`
	StackKB     uint64 `json:"stack_kb"`
	Goroutines  int    `json:"goroutines"`
	GoVersion   string `json:"go_version"`
}

// Metrics reports slot usage together with Go runtime memory figures. Memory held by ONNX Runtime lives outside
// the Go heap and is not included.
func (h *HTTP) Metrics(w http.ResponseWriter, _ *http.Request) {
	data := []metrics.Sample{
		{Name: "/memory/classes/heap/objects:bytes"},
		{Name: "/memory/classes/heap/stacks:bytes"},
		{Name: "/memory/classes/total:bytes"},
	}
	metrics.Read(data)

	sendJSON(w, http.StatusOK, metricsResponse{
		SlotStats:   h.service.Stats(),
		HeapKB:      sampleKB(data[0]),
		StackKB:     sampleKB(data[1]),
		AllocatedKB: sampleKB(data[2]),
		Goroutines:  runtime.NumGoroutine(),
		GoVersion:   runtime.Version(),
	})
}

func sampleKB(s metrics.Sample) uint64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s.Value.Uint64() / kb
}
