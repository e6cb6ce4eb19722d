package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkinAPI/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := GetSession(r.Context())
		require.True(t, ok)
		w.Write([]byte(session.Role))
	}))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken(testSecret, services.Session{
		Role:      services.RoleMember,
		CompanyID: "c1",
		MemberID:  "m1",
	}, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protectedEcho(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.RoleMember, rec.Body.String())
}

func TestRejectsMissingAndBadTokens(t *testing.T) {
	handler := protectedEcho(t)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with a different secret.
	other, err := IssueToken("other-secret", services.Session{Role: services.RoleCEO}, time.Now())
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireCEO(t *testing.T) {
	chain := AuthMiddleware(testSecret)(RequireCEO(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	memberToken, err := IssueToken(testSecret, services.Session{Role: services.RoleMember, CompanyID: "c1", MemberID: "m1"}, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ceoToken, err := IssueToken(testSecret, services.Session{Role: services.RoleCEO}, time.Now())
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+ceoToken)
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
