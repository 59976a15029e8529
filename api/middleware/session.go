package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

const sessionIDHeader = "X-Session-Id"

// Session resolves the anonymous storefront session identifier. The header
// wins over the cookie so API clients can pin a session explicitly; when
// neither is present a new identifier is minted and set as a cookie.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader))
			if sessionID == "" {
				if cookie, err := r.Cookie(cfg.CookieName); err == nil {
					sessionID = strings.TrimSpace(cookie.Value)
				}
			}
			if sessionID == "" || uuid.Validate(sessionID) != nil {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			w.Header().Set(sessionIDHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
