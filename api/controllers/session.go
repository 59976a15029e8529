package controllers

import (
	"net/http"

	"github.com/sigmalabbd/labstore-backend/api/middleware"
	"github.com/sigmalabbd/labstore-backend/api/responses"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

// SessionIssue echoes the resolved session identifier. The session
// middleware has already minted one when the request carried none.
func SessionIssue(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"session_id": sessionID})
	}
}

func sessionIDFromRequest(r *http.Request) (string, error) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id missing")
	}
	return sessionID, nil
}
