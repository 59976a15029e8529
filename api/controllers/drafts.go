package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sigmalabbd/labstore-backend/api/middleware"
	"github.com/sigmalabbd/labstore-backend/api/responses"
	"github.com/sigmalabbd/labstore-backend/api/validators"
	draftsvc "github.com/sigmalabbd/labstore-backend/internal/drafts"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

type draftSaveRequest struct {
	Fields map[string]string `json:"fields" validate:"required,min=1"`
}

// Drafts are scoped to the authenticated admin: two admins editing the same
// product each keep their own working copy.
func draftScope(r *http.Request) (adminID, productKey string, err error) {
	adminID = middleware.AdminIDFromContext(r.Context())
	if adminID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing")
	}
	productKey = strings.TrimSpace(chi.URLParam(r, "productId"))
	if productKey == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "product key is required")
	}
	return adminID, productKey, nil
}

// DraftFetch returns the stored draft, or 404 when none exists or it expired.
func DraftFetch(svc draftsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, productKey, err := draftScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.Load(r.Context(), adminID, productKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, draft)
	}
}

// DraftStatus reports whether a restorable draft exists without returning it,
// so the form can offer a restore prompt on mount.
func DraftStatus(svc draftsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, productKey, err := draftScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, svc.Check(r.Context(), adminID, productKey))
	}
}

// DraftSave writes the draft immediately. Content identical to the stored
// draft is skipped server-side.
func DraftSave(svc draftsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, productKey, err := draftScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload draftSaveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Save(r.Context(), adminID, productKey, payload.Fields); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "saved"})
	}
}

// DraftAutoSave schedules a debounced write; only the last snapshot in a
// typing burst reaches storage.
func DraftAutoSave(svc draftsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, productKey, err := draftScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload draftSaveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AutoSave(r.Context(), adminID, productKey, payload.Fields); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
	}
}

// DraftDiscard deletes the draft and cancels any pending autosave.
func DraftDiscard(svc draftsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, productKey, err := draftScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Discard(r.Context(), adminID, productKey); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "discarded"})
	}
}
