package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"checkinAPI/internal/types/reminder"
	"checkinAPI/middleware"
	"checkinAPI/services"

	"github.com/gorilla/mux"
)

type ReminderHandler struct {
	reminders *services.ReminderService
	runSecret string
}

func NewReminderHandler(reminders *services.ReminderService, runSecret string) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, runSecret: runSecret}
}

// Run is the cron-facing trigger. When a run secret is configured the
// caller must present it in X-Cron-Secret. The optional
// debug_utc_override body field pins the evaluation clock for testing
// trigger windows.
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.runSecret != "" && r.Header.Get("X-Cron-Secret") != h.runSecret {
		respondWithError(w, http.StatusUnauthorized, "Invalid cron secret")
		return
	}

	// Sending may ride through many members; give the run more room
	// than the interactive endpoints.
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if r.Body != nil {
		var req struct {
			DebugUTCOverride string `json:"debug_utc_override"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.DebugUTCOverride != "" {
			parsed, err := time.Parse(time.RFC3339, req.DebugUTCOverride)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "debug_utc_override must be RFC3339")
				return
			}
			now = parsed.UTC()
		}
	}

	summary, err := h.reminders.Run(ctx, now)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	middleware.RecordReminderRun(summary)
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *ReminderHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cfg, err := h.reminders.Config(ctx, mux.Vars(r)["companyId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (h *ReminderHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var cfg reminder.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.reminders.UpdateConfig(ctx, mux.Vars(r)["companyId"], cfg); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

func (h *ReminderHandler) Log(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	log, err := h.reminders.Log(ctx, mux.Vars(r)["companyId"], limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, log)
}
