package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"checkinAPI/middleware"
	"checkinAPI/services"

	"github.com/gorilla/mux"
)

// CheckinHandler is the member-facing submission surface. Every route
// acts on the authenticated member's own data.
type CheckinHandler struct {
	checkins *services.CheckinService
}

func NewCheckinHandler(checkins *services.CheckinService) *CheckinHandler {
	return &CheckinHandler{checkins: checkins}
}

func memberSession(w http.ResponseWriter, ctx context.Context) (services.Session, bool) {
	session, ok := middleware.GetSession(ctx)
	if !ok || session.Role != services.RoleMember {
		respondWithError(w, http.StatusForbidden, "Member access required")
		return services.Session{}, false
	}
	return session, true
}

// SelectableDays returns the dates the member may still submit for,
// newest first.
func (h *CheckinHandler) SelectableDays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	days, err := h.checkins.SelectableDays(ctx, session.CompanyID, session.MemberID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{"days": days})
}

func (h *CheckinHandler) SubmitDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	var req services.DailyInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.checkins.SubmitDaily(ctx, session.CompanyID, session.MemberID, mux.Vars(r)["date"], req); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"submitted": true})
}

func (h *CheckinHandler) SubmitWeekly(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	var req struct {
		KPIs      []services.KPIInput `json:"kpis"`
		Challenge string              `json:"challenge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.checkins.SubmitWeekly(ctx, session.CompanyID, session.MemberID, mux.Vars(r)["weekId"], req.KPIs, req.Challenge); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"submitted": true})
}

func (h *CheckinHandler) TogglePTO(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	on, err := h.checkins.TogglePTO(ctx, session.CompanyID, session.MemberID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"pto": on})
}

func (h *CheckinHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	var req struct {
		CommentKey string `json:"commentKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CommentKey == "" {
		respondWithError(w, http.StatusBadRequest, "commentKey is required")
		return
	}

	if err := h.checkins.MarkSeen(ctx, session.CompanyID, session.MemberID, req.CommentKey); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"seen": true})
}

// ReplyStuck appends the member's message to their own stuck thread for
// a date.
func (h *CheckinHandler) ReplyStuck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.checkins.ReplyStuck(ctx, session.CompanyID, session.MemberID, mux.Vars(r)["date"], session.MemberID, req.Text); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"replied": true})
}

// WeekDetail shows the member their own week: dailies, weekly entry and
// resolved status.
func (h *CheckinHandler) WeekDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	detail, err := h.checkins.MemberDetail(ctx, session.CompanyID, session.MemberID, mux.Vars(r)["weekId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

// Summary shows the member their own streak and hit rate.
func (h *CheckinHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := memberSession(w, ctx)
	if !ok {
		return
	}

	summary, err := h.checkins.Summary(ctx, session.CompanyID, session.MemberID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
