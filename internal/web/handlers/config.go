package handlers

import (
	"net/http"

	"github.com/kozaktomas/photo-finder/internal/album"
	"github.com/kozaktomas/photo-finder/internal/config"
	"github.com/kozaktomas/photo-finder/internal/constants"
	"github.com/kozaktomas/photo-finder/internal/facematch"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Sources          []SourceInfo `json:"sources"`
	DefaultSource    string       `json:"default_source"`
	Models           []string     `json:"models"`
	DefaultModel     string       `json:"default_model"`
	Tolerance        float64      `json:"tolerance"`
	ToleranceMin     float64      `json:"tolerance_min"`
	ToleranceMax     float64      `json:"tolerance_max"`
	ToleranceStep    float64      `json:"tolerance_step"`
	ResultsPageSize  int          `json:"results_page_size"`
	PhotoPrismDomain string       `json:"photoprism_domain,omitempty"`
}

// SourceInfo represents information about an album source
type SourceInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Get returns the scan defaults and the configured album sources
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	sources := []SourceInfo{
		{
			Name:      album.KindPhotoPrism,
			Available: h.config.PhotoPrism.URL != "",
		},
		{
			Name:      album.KindDrive,
			Available: h.config.Drive.CredentialsFile != "",
		},
		{
			Name:      album.KindDir,
			Available: h.config.Dir.Root != "",
		},
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Sources:          sources,
		DefaultSource:    h.config.Scan.Source,
		Models:           []string{facematch.ModelFast.String(), facematch.ModelAccurate.String()},
		DefaultModel:     h.config.Scan.Model.String(),
		Tolerance:        h.config.Scan.Tolerance,
		ToleranceMin:     float64(facematch.MinPracticalTolerance),
		ToleranceMax:     float64(facematch.MaxPracticalTolerance),
		ToleranceStep:    float64(facematch.ToleranceStep),
		ResultsPageSize:  constants.ResultsPageSize,
		PhotoPrismDomain: h.config.PhotoPrism.URL,
	})
}
