package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
)

type contextKey string

const (
	SessionKey contextKey = "session"
	TokenKey   contextKey = "token"
)

// Anonymous callers are told apart by a client id sent back in this header
// or cookie. Their cached analyses are only visible under the same id.
const (
	ClientIDHeader = "X-Client-ID"
	ClientIDCookie = "clinisense_client"
)

const clientIDMaxAge = 30 * 24 * 60 * 60

// SessionResolver maps a bearer token to the doctor session it belongs to.
type SessionResolver interface {
	Current(ctx context.Context, token string) (*doctors.Session, error)
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	// Support both "Bearer <token>" and "<token>" formats
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		auth = auth[7:]
	}
	return strings.TrimSpace(auth)
}

// ClientID returns the anonymous client id carried by the request, header
// first. Values that are not UUIDs are ignored.
func ClientID(r *http.Request) (string, bool) {
	if id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(ClientIDHeader))); err == nil {
		return id.String(), true
	}
	if c, err := r.Cookie(ClientIDCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), true
		}
	}
	return "", false
}

// SessionAuth attaches the doctor session to the request context when a
// bearer token is sent; a token that resolves to no session is rejected.
// Requests without a token get an anonymous session keyed by their client
// id, issued here when missing.
func SessionAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				id, ok := ClientID(r)
				if !ok {
					id = uuid.NewString()
					http.SetCookie(w, &http.Cookie{
						Name:     ClientIDCookie,
						Value:    id,
						Path:     "/",
						MaxAge:   clientIDMaxAge,
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
					})
				}
				w.Header().Set(ClientIDHeader, id)
				ctx := context.WithValue(r.Context(), SessionKey, doctors.Anonymous(id))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sess, err := resolver.Current(r.Context(), token)
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, analysis.ErrUnauthorized) {
					status = http.StatusUnauthorized
				}
				writeDetail(w, status, "session invalide ou expirée")
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			ctx = context.WithValue(ctx, TokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects anonymous requests. Mount after SessionAuth.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromContext(r.Context()).Authenticated() {
			writeDetail(w, http.StatusUnauthorized, "authentification requise")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext returns the doctor or anonymous session, or nil
// outside SessionAuth.
func SessionFromContext(ctx context.Context) *doctors.Session {
	if sess, ok := ctx.Value(SessionKey).(*doctors.Session); ok {
		return sess
	}
	return nil
}

func TokenFromContext(ctx context.Context) string {
	if tok, ok := ctx.Value(TokenKey).(string); ok {
		return tok
	}
	return ""
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
