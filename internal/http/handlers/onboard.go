package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/mobile"
	"github.com/smsbridge/server/internal/onboarding"
)

// OnboardHandler handles challenge registration
type OnboardHandler struct {
	service *onboarding.Service
}

// NewOnboardHandler creates a new onboarding handler
func NewOnboardHandler(service *onboarding.Service) *OnboardHandler {
	return &OnboardHandler{service: service}
}

// registerRequest is the request body for POST /onboard/register
type registerRequest struct {
	MobileNumber string `json:"mobile_number"`
	Email        string `json:"email"`
	DeviceID     string `json:"device_id"`
}

// registerResponse is the JSON response for register
type registerResponse struct {
	Message          string `json:"message"`
	Hash             string `json:"hash"`
	TimelimitSeconds int    `json:"timelimit_seconds"`
	AuditTTLSeconds  int    `json:"audit_ttl_seconds"`
	UserDeadline     string `json:"user_deadline"`
	ExpiresAt        string `json:"expires_at"`
}

// HandleRegister handles POST /onboard/register
func (h *OnboardHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.MobileNumber == "" || req.DeviceID == "" {
		respondWithError(w, http.StatusBadRequest, "mobile_number and device_id are required")
		return
	}

	reg, err := h.service.Register(r.Context(), req.MobileNumber, req.Email, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, mobile.ErrInvalidNumber):
			respondWithError(w, http.StatusBadRequest, "invalid mobile number")
		case errors.Is(err, onboarding.ErrAlreadyValidated):
			respondWithError(w, http.StatusConflict, "mobile and device already validated")
		case errors.Is(err, onboarding.ErrBlacklisted):
			respondWithError(w, http.StatusForbidden, "mobile number is blacklisted")
		case faststore.IsUnavailable(err):
			respondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			log.Printf("Phone %s: registration failed: %v", maskPhone(req.MobileNumber), err)
			respondWithError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, registerResponse{
		Message:          "challenge_issued",
		Hash:             reg.Hash,
		TimelimitSeconds: reg.UserTimelimitSeconds,
		AuditTTLSeconds:  reg.AuditTTLSeconds,
		UserDeadline:     reg.UserDeadline.UTC().Format(time.RFC3339),
		ExpiresAt:        reg.AuditExpiry.UTC().Format(time.RFC3339),
	})
}
