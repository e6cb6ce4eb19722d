package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"checkinAPI/services"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const SessionKey contextKey = "session"

const tokenTTL = 7 * 24 * time.Hour

// Claims is the JWT payload: the caller's role and, for members, their
// company and member IDs.
type Claims struct {
	Role      string `json:"role"`
	CompanyID string `json:"compId,omitempty"`
	MemberID  string `json:"memberId,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token.
func IssueToken(secret string, session services.Session, now time.Time) (string, error) {
	claims := Claims{
		Role:      session.Role,
		CompanyID: session.CompanyID,
		MemberID:  session.MemberID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// AuthMiddleware validates the bearer token and stores the session in
// the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			raw := strings.TrimPrefix(authHeader, "Bearer ")
			if raw == authHeader {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			session := services.Session{
				Role:      claims.Role,
				CompanyID: claims.CompanyID,
				MemberID:  claims.MemberID,
			}
			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCEO rejects non-CEO sessions.
func RequireCEO(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := GetSession(r.Context())
		if !ok || session.Role != services.RoleCEO {
			respondWithError(w, http.StatusForbidden, "CEO access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSession extracts the authenticated session from context.
func GetSession(ctx context.Context) (services.Session, bool) {
	session, ok := ctx.Value(SessionKey).(services.Session)
	return session, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(fmt.Sprintf(`{"error": "%s"}`, message)))
}
