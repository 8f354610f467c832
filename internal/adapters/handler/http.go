package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"pbox-upscaler/internal/core/domain"
	"pbox-upscaler/internal/core/port"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const DefaultMaxBodyBytes = 10 << 20

const dataURLPrefix = "data:image/jpeg;base64,"

type upscaleRequest struct {
	ImageData string `json:"imageData"`
}

type upscaleResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
}

// HTTP exposes the upscaler as a JSON API compatible with the photobox web client.
type HTTP struct {
	service      port.UpscaleService
	authorizer   port.Authorizer
	maxBodyBytes int64
	timeout      time.Duration
}

func NewHTTP(service port.UpscaleService, authorizer port.Authorizer, maxBodyBytes int64,
	timeout time.Duration) *HTTP {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTP{service: service, authorizer: authorizer, maxBodyBytes: maxBodyBytes, timeout: timeout}
}

func (h *HTTP) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/upscale", h.Upscale).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.Metrics).Methods(http.MethodGet)
	return r
}

func (h *HTTP) Upscale(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.NewV4()
	if err != nil {
		sendError(w, "internal_error", err.Error(), http.StatusInternalServerError)
		return
	}

	l := log.With().
		Str("requestId", id.String()).
		Str("remote", r.RemoteAddr).
		Logger()

	l.Info().Msg("handling request")

	if !h.authorizer.IsAuthorized(bearerToken(r)) {
		sendError(w, "unauthorized", "missing or unknown api token", http.StatusUnauthorized)
		return
	}

	var req upscaleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "payload_too_large", "request body exceeds limit", http.StatusRequestEntityTooLarge)
			return
		}
		sendError(w, "invalid_request", "invalid JSON body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.ImageData) == "" {
		sendError(w, "invalid_request", "No image data provided", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	encoded, err := h.service.UpscaleBase64(ctx, req.ImageData)
	if err != nil {
		code, status := classify(err)
		l.Error().Err(err).Str("code", code).Msg("failed to upscale image")
		sendError(w, code, err.Error(), status)
		return
	}

	l.Info().Dur("took", time.Since(start)).Int("bytes", len(encoded)).Msg("upscaled image")

	sendJSON(w, http.StatusOK, upscaleResponse{Success: true, ImageData: dataURLPrefix + encoded})
}

func (h *HTTP) Health(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classify maps domain errors to an error code and HTTP status. Retryable conditions get 503 so clients know
// to try again later.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return "invalid_image", http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		return "busy", http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrOutOfMemory):
		return "out_of_memory", http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPathResolution), errors.Is(err, domain.ErrWeightMismatch):
		return "model_unavailable", http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout", http.StatusGatewayTimeout
	default:
		return "processing_error", http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	sendJSON(w, status, upscaleResponse{Success: false, Message: message, Code: code})
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
