package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/me-in-moments/internal/config"
	"github.com/kozaktomas/me-in-moments/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	cache  database.FaceReader
}

// NewConfigHandler creates a new config handler. cache may be nil.
func NewConfigHandler(cfg *config.Config, cache database.FaceReader) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		cache:  cache,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Threshold     ThresholdInfo        `json:"threshold"`
	Model         string               `json:"model"`
	Preprocess    string               `json:"preprocess"`
	Extensions    []string             `json:"extensions"`
	MaxUploadSize int64                `json:"max_upload_size"`
	Cache         *database.CacheStats `json:"cache,omitempty"`
}

// ThresholdInfo describes the default threshold and the range suggested to users
type ThresholdInfo struct {
	Default      float64 `json:"default"`
	SuggestedMin float64 `json:"suggested_min"`
	SuggestedMax float64 `json:"suggested_max"`
}

// Get returns the matching configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Threshold: ThresholdInfo{
			Default:      h.config.Match.DefaultThreshold,
			SuggestedMin: h.config.Match.SuggestedMin,
			SuggestedMax: h.config.Match.SuggestedMax,
		},
		Model:         h.config.Embedding.Model,
		Preprocess:    string(h.config.Match.PreprocessMode()),
		Extensions:    h.config.Workspace.Extensions,
		MaxUploadSize: h.config.Web.MaxUploadSize,
	}

	if h.cache != nil {
		stats, err := h.cache.Stats(r.Context())
		if err != nil {
			log.Printf("Warning: failed to read cache stats: %v", err)
		} else {
			response.Cache = &stats
		}
	}

	respondJSON(w, http.StatusOK, response)
}
