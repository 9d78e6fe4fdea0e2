package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const sessionKey ctxKey = "session"

const DefaultSessionCookie = "case_session"

// SessionContext:
// - Si viene la cookie con un UUID válido => se usa como id de sesión.
// - Si no => se genera uno nuevo y se setea la cookie (HttpOnly, SameSite=Lax).
// El id queda en el context; los handlers lo leen con GetSessionID.
func SessionContext(cookieName string) func(http.Handler) http.Handler {
	cookieName = strings.TrimSpace(cookieName)
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := sessionFromCookie(r, cookieName); id != "" {
				ctx := context.WithValue(r.Context(), sessionKey, id)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			id := uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     cookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   r.TLS != nil,
			})

			ctx := context.WithValue(r.Context(), sessionKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSessionID(ctx context.Context) (string, bool) {
	v := ctx.Value(sessionKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func sessionFromCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	v := strings.TrimSpace(c.Value)
	// Solo aceptamos ids que nosotros podríamos haber emitido.
	if _, err := uuid.Parse(v); err != nil {
		return ""
	}
	return v
}
