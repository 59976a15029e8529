package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/api/responses"
	"github.com/sigmalabbd/labstore-backend/api/validators"
	"github.com/sigmalabbd/labstore-backend/internal/catalog"
	recentsvc "github.com/sigmalabbd/labstore-backend/internal/recent"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

type recentlyViewedRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

// RecentlyViewedAdd records a product view in the session ledger.
func RecentlyViewedAdd(svc recentsvc.Service, products catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recentlyViewedRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		loaded, err := products.GetProductsByIDs(r.Context(), []uuid.UUID{payload.ProductID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(loaded) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		product := loaded[0]

		entries, err := svc.Add(r.Context(), sessionID, recentsvc.AddInput{
			ProductID:         product.ID,
			Slug:              product.Slug,
			Name:              product.Name,
			NameBn:            product.NameBn,
			PriceCents:        product.PriceCents,
			ComparePriceCents: product.ComparePriceCents,
			InStock:           product.InStock,
			CategoryID:        product.CategoryID,
			ImageURL:          product.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

// RecentlyViewedList returns the ledger, optionally excluding the product
// currently on screen.
func RecentlyViewedList(svc recentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var entries []recentsvc.Entry
		if exclude := strings.TrimSpace(r.URL.Query().Get("exclude")); exclude != "" {
			productID, parseErr := uuid.Parse(exclude)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid exclude id"))
				return
			}
			entries, err = svc.ListExcluding(r.Context(), sessionID, productID)
		} else {
			entries, err = svc.List(r.Context(), sessionID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

// RecentlyViewedClear wipes the ledger.
func RecentlyViewedClear(svc recentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
