package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"clinic/internal/domain"
	"clinic/internal/models"

	"github.com/google/uuid"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

const requestIDHeader = "X-Request-ID"

// authenticated требует действующий bearer-токен и кладёт пользователя в контекст.
func (s *HTTPServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plain, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, token, err := s.services.Auth.Authenticate(r.Context(), plain)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// adminOnly additionally requires the admin ability on the token and the admin role on the user.
func (s *HTTPServer) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		token := tokenFromContext(r.Context())
		if user == nil || token == nil || !user.IsAdmin() || !token.Can(models.AbilityAdmin) {
			writeDomainError(w, r, domain.ErrForbidden)
			return
		}
		next(w, r)
	})
}

func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

func tokenFromContext(ctx context.Context) *models.AccessToken {
	token, _ := ctx.Value(tokenKey).(*models.AccessToken)
	return token
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func requestIDFromHeader(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}
