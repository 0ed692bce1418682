package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-engine/internal/types"
)

// parseConfigurationID extracts and validates the {id} path segment.
func (s *Server) parseConfigurationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid configuration ID")
		return uuid.Nil, false
	}
	return id, true
}

// handleCreateConfiguration creates a generation configuration. The site
// password is sealed into the vault before it touches the database.
func (s *Server) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req types.CreateConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := s.configurationFromRequest(&req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	cfg.ID = uuid.New()
	cfg.CreatedAt = time.Now().UTC()
	cfg.UpdatedAt = cfg.CreatedAt

	if err := s.configs.CreateConfiguration(r.Context(), cfg); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, cfg)
}

// handleListConfigurations lists all configurations.
func (s *Server) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configs.ListConfigurations(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if configs == nil {
		configs = []types.Configuration{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"configurations": configs,
		"count":          len(configs),
	})
}

// handleGetConfiguration returns a single configuration.
func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseConfigurationID(w, r)
	if !ok {
		return
	}

	cfg, err := s.configs.GetConfiguration(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, cfg)
}

// handleUpdateConfiguration replaces a configuration. Jobs claimed before
// the update keep the snapshot they started with.
func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseConfigurationID(w, r)
	if !ok {
		return
	}

	var req types.CreateConfigurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.configs.GetConfiguration(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	cfg, err := s.configurationFromRequest(&req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	cfg.ID = id
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now().UTC()
	if cfg.SitePasswordEncrypted == "" {
		// Keep the stored credential when the update omits the password.
		cfg.SitePasswordEncrypted = existing.SitePasswordEncrypted
	}

	if err := s.configs.UpdateConfiguration(r.Context(), cfg); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, cfg)
}

// handleDeleteConfiguration removes a configuration.
func (s *Server) handleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseConfigurationID(w, r)
	if !ok {
		return
	}

	if err := s.configs.DeleteConfiguration(r.Context(), id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// configurationFromRequest maps the request onto a configuration record,
// applying defaults and sealing the password.
func (s *Server) configurationFromRequest(req *types.CreateConfigurationRequest) (*types.Configuration, error) {
	cfg := &types.Configuration{
		Name:                   req.Name,
		ChapterCount:           req.ChapterCount,
		WordsPerChapter:        req.WordsPerChapter,
		ModelTier:              req.ModelTier,
		AutoPublish:            req.AutoPublish,
		ImagesEnabled:          req.ImagesEnabled,
		ImageSize:              req.ImageSize,
		ImageQuality:           req.ImageQuality,
		AssetProvider:          req.AssetProvider,
		AllowPartialCompletion: req.AllowPartialCompletion,
		PhaseTimeoutSeconds:    req.PhaseTimeoutSeconds,
		SiteURL:                req.SiteURL,
		SiteUsername:           req.SiteUsername,
	}

	if cfg.ModelTier == "" {
		cfg.ModelTier = "standard"
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = types.ImageSizeSquare
	}
	if cfg.ImageQuality == "" {
		cfg.ImageQuality = types.ImageQualityStd
	}
	if cfg.AssetProvider == "" {
		cfg.AssetProvider = "wordpress"
	}

	if req.SitePassword != "" {
		sealed, err := s.vault.Seal(req.SitePassword)
		if err != nil {
			return nil, &types.ErrCredential{Message: "failed to seal site password", Cause: err}
		}
		cfg.SitePasswordEncrypted = sealed
	}

	return cfg, nil
}
