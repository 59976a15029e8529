package controllers

import (
	"net/http"
	"strings"

	"github.com/sigmalabbd/labstore-backend/api/responses"
	"github.com/sigmalabbd/labstore-backend/api/validators"
	prefsvc "github.com/sigmalabbd/labstore-backend/internal/preferences"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

type densityUpdateRequest struct {
	DeviceClass string `json:"device_class" validate:"required,oneof=mobile desktop"`
	Density     string `json:"density" validate:"required,oneof=comfortable compact"`
}

type densityToggleRequest struct {
	DeviceClass string `json:"device_class" validate:"required,oneof=mobile desktop"`
}

type viewportRequest struct {
	Width int `json:"width" validate:"required,gte=1"`
}

// DensityFetch returns the stored density for the requested device class,
// defaulting to comfortable when nothing is stored.
func DensityFetch(svc prefsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		class := prefsvc.DeviceClass(strings.TrimSpace(r.URL.Query().Get("device_class")))
		if class == "" {
			class = prefsvc.DeviceDesktop
		}

		density, err := svc.Density(r.Context(), sessionID, class)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"device_class": class, "density": density})
	}
}

// DensityUpdate persists an explicit density choice for one device class.
func DensityUpdate(svc prefsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload densityUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		class := prefsvc.DeviceClass(payload.DeviceClass)
		density := prefsvc.Density(payload.Density)
		if err := svc.SetDensity(r.Context(), sessionID, class, density); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"device_class": class, "density": density})
	}
}

// DensityToggle flips the density for one device class.
func DensityToggle(svc prefsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload densityToggleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		class := prefsvc.DeviceClass(payload.DeviceClass)
		density, err := svc.ToggleDensity(r.Context(), sessionID, class)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"device_class": class, "density": density})
	}
}

// Viewport reports the device class for a viewport width. Rapid resize
// bursts are throttled server-side; coalesced calls return the last result.
func Viewport(svc prefsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload viewportRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Width <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "width must be positive"))
			return
		}

		result, err := svc.Viewport(r.Context(), sessionID, payload.Width)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
