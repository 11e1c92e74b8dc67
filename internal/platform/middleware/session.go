package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

// SessionConfig describes the browser session cookie that scopes wizard state.
type SessionConfig struct {
	CookieName string
	Secure     bool
}

// GetSessionID retrieves the session ID from the context.
var GetSessionID = requestcontext.SessionID

// Session reads the session cookie, minting a new session when the cookie is
// missing or malformed, and puts the session ID in the context. A new session
// has no wizard state, so any step other than an entry step redirects to its
// flow's start.
func Session(cfg SessionConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sessionID := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					sessionID = c.Value
				} else {
					logger.WarnContext(ctx, "ignoring malformed session cookie",
						"request_id", GetRequestID(ctx),
					)
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx = requestcontext.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
