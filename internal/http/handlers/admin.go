package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
)

// Recoverer triggers a fast-store recovery run.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// AdminHandler handles the operator API: runtime settings and manual
// recovery.
type AdminHandler struct {
	settingsRepo  repo.SettingsRepo
	blacklistRepo repo.BlacklistRepo
	cache         *settings.Cache
	recoverer     Recoverer
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(settingsRepo repo.SettingsRepo, blacklistRepo repo.BlacklistRepo, cache *settings.Cache, recoverer Recoverer) *AdminHandler {
	return &AdminHandler{
		settingsRepo:  settingsRepo,
		blacklistRepo: blacklistRepo,
		cache:         cache,
		recoverer:     recoverer,
	}
}

// settingResponse is one setting in API responses
type settingResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updated_at"`
}

func toSettingResponse(s model.Setting) settingResponse {
	return settingResponse{
		Key:         s.Key,
		Value:       s.Value,
		ValueType:   s.ValueType,
		Category:    s.Category,
		Description: s.Description,
		UpdatedAt:   s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleListSettings handles GET /admin/settings
func (h *AdminHandler) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.settingsRepo.List(r.Context())
	if err != nil {
		log.Printf("Failed to list settings: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list settings")
		return
	}
	resp := make([]settingResponse, 0, len(all))
	for _, s := range all {
		resp = append(resp, toSettingResponse(s))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleGetSetting handles GET /admin/settings/{key}
func (h *AdminHandler) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s, err := h.settingsRepo.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "setting not found")
			return
		}
		log.Printf("Failed to get setting %q: %v", key, err)
		respondWithError(w, http.StatusInternalServerError, "failed to get setting")
		return
	}
	respondWithJSON(w, http.StatusOK, toSettingResponse(s))
}

// updateSettingRequest is the request body for PUT /admin/settings/{key}
type updateSettingRequest struct {
	Value string `json:"value"`
}

// HandleUpdateSetting handles PUT /admin/settings/{key}. The durable row is
// the source of truth; the fast-store mirror is invalidated so the new value
// takes effect within one cache TTL everywhere.
func (h *AdminHandler) HandleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req updateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Value = strings.TrimSpace(req.Value)
	if req.Value == "" {
		respondWithError(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := h.settingsRepo.Update(r.Context(), key, req.Value); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "setting not found")
			return
		}
		log.Printf("Failed to update setting %q: %v", key, err)
		respondWithError(w, http.StatusInternalServerError, "failed to update setting")
		return
	}
	h.cache.Invalidate(r.Context(), key)

	s, err := h.settingsRepo.Get(r.Context(), key)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to read updated setting")
		return
	}
	respondWithJSON(w, http.StatusOK, toSettingResponse(s))
}

// blacklistEntryResponse is one blacklist row in API responses
type blacklistEntryResponse struct {
	ID            int64  `json:"id"`
	MobileNumber  string `json:"mobile_number"`
	Reason        string `json:"reason"`
	OffenseCount  int    `json:"offense_count"`
	BlacklistedAt string `json:"blacklisted_at"`
}

// HandleListBlacklist handles GET /admin/blacklist
func (h *AdminHandler) HandleListBlacklist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.blacklistRepo.List(r.Context())
	if err != nil {
		log.Printf("Failed to list blacklist: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list blacklist")
		return
	}
	resp := make([]blacklistEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, blacklistEntryResponse{
			ID:            e.ID,
			MobileNumber:  e.Number,
			Reason:        e.Reason,
			OffenseCount:  e.OffenseCount,
			BlacklistedAt: e.BlacklistedAt.UTC().Format(time.RFC3339),
		})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleRecovery handles POST /admin/recovery. The drain can take a while
// with a large backlog, so it runs detached from the request.
func (h *AdminHandler) HandleRecovery(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.recoverer.Recover(ctx); err != nil {
			log.Printf("Manual recovery failed: %v", err)
		}
	}()
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "recovery_started"})
}
