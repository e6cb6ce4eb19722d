package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"checkinAPI/services"

	"github.com/gorilla/mux"
)

// DashboardHandler is the CEO review surface.
type DashboardHandler struct {
	checkins *services.CheckinService
}

func NewDashboardHandler(checkins *services.CheckinService) *DashboardHandler {
	return &DashboardHandler{checkins: checkins}
}

func (h *DashboardHandler) DailyFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	feed, err := h.checkins.DailyFeed(ctx, vars["companyId"], vars["date"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, feed)
}

func (h *DashboardHandler) WeeklyBoard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	board, err := h.checkins.WeeklyBoard(ctx, vars["companyId"], vars["weekId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}

func (h *DashboardHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.checkins.Heatmap(ctx, mux.Vars(r)["companyId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

func (h *DashboardHandler) MemberDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	detail, err := h.checkins.MemberDetail(ctx, vars["companyId"], vars["memberId"], vars["weekId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *DashboardHandler) MemberSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	summary, err := h.checkins.Summary(ctx, vars["companyId"], vars["memberId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// SetDailyComment writes feedback on a member's daily entry. Empty text
// clears it.
func (h *DashboardHandler) SetDailyComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	if err := h.checkins.SetDailyComment(ctx, vars["companyId"], vars["memberId"], vars["date"], req.Text); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (h *DashboardHandler) SetWeeklyComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	if err := h.checkins.SetWeeklyComment(ctx, vars["companyId"], vars["memberId"], vars["weekId"], req.Text); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// ReplyStuck appends the CEO's reply to a member's stuck thread, which
// also resolves it in the daily feed ordering.
func (h *DashboardHandler) ReplyStuck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	if err := h.checkins.ReplyStuck(ctx, vars["companyId"], vars["memberId"], vars["date"], services.RoleCEO, req.Text); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"replied": true})
}
