package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"checkinAPI/services"

	"github.com/gorilla/mux"
)

// AdminHandler is the CEO-only org surface: companies, teams, members.
type AdminHandler struct {
	accounts *services.AccountService
}

func NewAdminHandler(accounts *services.AccountService) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

func (h *AdminHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	companies, err := h.accounts.Companies(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, companies)
}

func (h *AdminHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"tz"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	companyID, err := h.accounts.AddCompany(ctx, req.Name, req.Timezone)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"companyId": companyID})
}

func (h *AdminHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.accounts.RemoveCompany(ctx, mux.Vars(r)["companyId"]); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *AdminHandler) SetCompanyTimezone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Timezone string `json:"tz"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.accounts.SetCompanyTimezone(ctx, mux.Vars(r)["companyId"], req.Timezone); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"tz": req.Timezone})
}

func (h *AdminHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	teamID, err := h.accounts.AddTeam(ctx, mux.Vars(r)["companyId"], req.Name)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"teamId": teamID})
}

func (h *AdminHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	if err := h.accounts.RemoveTeam(ctx, vars["companyId"], vars["teamId"]); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// AddMember creates the member and returns the generated initial
// password exactly once.
func (h *AdminHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Name  string   `json:"name"`
		Email string   `json:"email"`
		Role  string   `json:"role"`
		KPIs  []string `json:"kpis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	member, password, err := h.accounts.AddMember(ctx, vars["companyId"], vars["teamId"], req.Name, req.Email, req.Role, req.KPIs)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"member":   member,
		"password": password,
	})
}

func (h *AdminHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	if err := h.accounts.RemoveMember(ctx, vars["companyId"], vars["memberId"]); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *AdminHandler) UpdateMemberKPIs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		KPIs []string `json:"kpis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	if err := h.accounts.UpdateMemberKPIs(ctx, vars["companyId"], vars["memberId"], req.KPIs); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *AdminHandler) UpdateMemberProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	if err := h.accounts.UpdateMemberProfile(ctx, vars["companyId"], vars["memberId"], req.Name, req.Role); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *AdminHandler) ResetMemberPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	password, err := h.accounts.ResetMemberPassword(ctx, vars["companyId"], vars["memberId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"password": password})
}
