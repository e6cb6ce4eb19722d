package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"checkinAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service sentinel errors onto HTTP
// status codes. Unknown errors become opaque 500s.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrAlreadySetup):
		respondWithError(w, http.StatusConflict, "Already set up")
	case errors.Is(err, services.ErrNotSetup):
		respondWithError(w, http.StatusConflict, "Initial setup required")
	case errors.Is(err, services.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "Email already in use")
	case errors.Is(err, services.ErrWeekLocked):
		respondWithError(w, http.StatusConflict, "Week is locked")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
