package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"checkinAPI/middleware"
	"checkinAPI/services"
)

type AuthHandler struct {
	accounts  *services.AccountService
	jwtSecret string
}

func NewAuthHandler(accounts *services.AccountService, jwtSecret string) *AuthHandler {
	return &AuthHandler{accounts: accounts, jwtSecret: jwtSecret}
}

// Status reports whether initial setup has run, so the client knows
// which screen to show first.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	setup, err := h.accounts.IsSetup(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"setup": setup})
}

func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		CompanyName string `json:"companyName"`
		Timezone    string `json:"tz"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	companyID, err := h.accounts.Setup(ctx, req.Email, req.Password, req.CompanyName, req.Timezone)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	token, err := middleware.IssueToken(h.jwtSecret, services.Session{Role: services.RoleCEO}, time.Now())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{
		"token":     token,
		"role":      services.RoleCEO,
		"companyId": companyID,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	token, err := middleware.IssueToken(h.jwtSecret, session, time.Now())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"token":     token,
		"role":      session.Role,
		"companyId": session.CompanyID,
		"memberId":  session.MemberID,
	})
}

// ChangePassword changes the caller's own password, CEO or member.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := middleware.GetSession(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req struct {
		Current string `json:"current"`
		Next    string `json:"next"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var err error
	if session.Role == services.RoleCEO {
		err = h.accounts.ChangeCEOPassword(ctx, req.Current, req.Next)
	} else {
		err = h.accounts.ChangeMemberPassword(ctx, session.CompanyID, session.MemberID, req.Current, req.Next)
	}
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"changed": true})
}

// SetTimezone is member self-service: override or clear the personal
// timezone.
func (h *AuthHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, ok := middleware.GetSession(ctx)
	if !ok || session.Role != services.RoleMember {
		respondWithError(w, http.StatusForbidden, "Member access required")
		return
	}

	var req struct {
		Timezone string `json:"tz"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.accounts.SetMemberTimezone(ctx, session.CompanyID, session.MemberID, req.Timezone); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"tz": req.Timezone})
}
