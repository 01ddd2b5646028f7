package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smsbridge/server/internal/ingest"
)

// SMSHandler handles inbound SMS delivery from the gateway
type SMSHandler struct {
	service *ingest.Service
}

// NewSMSHandler creates a new SMS handler
func NewSMSHandler(service *ingest.Service) *SMSHandler {
	return &SMSHandler{service: service}
}

// receiveRequest is the request body for POST /sms/receive
type receiveRequest struct {
	MobileNumber string `json:"mobile_number"`
	DeviceID     string `json:"device_id"`
	Message      string `json:"message"`
	ReceivedAt   string `json:"received_at,omitempty"`
}

// receiveResponse is the JSON response for receive. SeqID is 0 while the
// message sits in the power-down backlog.
type receiveResponse struct {
	MessageID     string `json:"message_id"`
	SeqID         int64  `json:"seq_id,omitempty"`
	Status        string `json:"status"`
	FailedAtCheck string `json:"failed_at_check,omitempty"`
}

// HandleReceive handles POST /sms/receive
func (h *SMSHandler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if req.MobileNumber == "" || req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "mobile_number and message are required")
		return
	}

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "received_at must be RFC 3339")
			return
		}
		receivedAt = t.UTC()
	}

	result, err := h.service.Receive(r.Context(), req.MobileNumber, strings.TrimSpace(req.DeviceID), req.Message, receivedAt)
	if err != nil {
		log.Printf("Phone %s: ingest failed: %v", maskPhone(req.MobileNumber), err)
		respondWithError(w, http.StatusInternalServerError, "message processing failed")
		return
	}

	resp := receiveResponse{
		MessageID: uuid.New().String(),
		Status:    string(result.Msg.Status),
	}
	if result.Deferred {
		// Captured durably; the verdict comes after recovery replay.
		respondWithJSON(w, http.StatusAccepted, resp)
		return
	}
	resp.SeqID = result.Msg.Seq
	resp.FailedAtCheck = result.Msg.FailedAtCheck
	respondWithJSON(w, http.StatusOK, resp)
}
