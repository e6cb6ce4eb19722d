package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checkinAPI/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReminderRunHandler(t *testing.T, runSecret string) *ReminderHandler {
	t.Helper()
	store := services.NewMemoryStore()
	logger := zerolog.Nop()
	accounts := services.NewAccountService(store, logger)
	_, err := accounts.Setup(context.Background(), "boss@acme.test", "topsecret", "Acme", "UTC")
	require.NoError(t, err)
	reminders := services.NewReminderService(store, accounts, services.NewConsoleSender(logger), logger, services.ReminderOptions{})
	return NewReminderHandler(reminders, runSecret)
}

func TestRunRequiresCronSecret(t *testing.T) {
	h := newReminderRunHandler(t, "cron-key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	rec = httptest.NewRecorder()
	h.Run(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil)
	req.Header.Set("X-Cron-Secret", "cron-key")
	rec = httptest.NewRecorder()
	h.Run(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunOpenWithoutConfiguredSecret(t *testing.T) {
	h := newReminderRunHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunRejectsBadClockOverride(t *testing.T) {
	h := newReminderRunHandler(t, "cron-key")

	body := strings.NewReader(`{"debug_utc_override": "yesterday"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", body)
	req.Header.Set("X-Cron-Secret", "cron-key")
	rec := httptest.NewRecorder()
	h.Run(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
