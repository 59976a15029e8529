package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/api/responses"
	"github.com/sigmalabbd/labstore-backend/api/validators"
	"github.com/sigmalabbd/labstore-backend/internal/catalog"
	comparesvc "github.com/sigmalabbd/labstore-backend/internal/compare"
	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

type compareProductRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

func compareItemFor(product models.Product) comparesvc.Item {
	return comparesvc.Item{
		ProductID:         product.ID,
		Slug:              product.Slug,
		Name:              product.Name,
		NameBn:            product.NameBn,
		PriceCents:        product.PriceCents,
		ComparePriceCents: product.ComparePriceCents,
		InStock:           product.InStock,
		ImageURL:          product.ImageURL,
	}
}

func resolveCompareItem(r *http.Request, products catalog.Service) (comparesvc.Item, error) {
	var payload compareProductRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return comparesvc.Item{}, err
	}
	loaded, err := products.GetProductsByIDs(r.Context(), []uuid.UUID{payload.ProductID})
	if err != nil {
		return comparesvc.Item{}, err
	}
	if len(loaded) == 0 {
		return comparesvc.Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return compareItemFor(loaded[0]), nil
}

// CompareFetch returns the session's compare selection.
func CompareFetch(svc comparesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// CompareAdd puts a product into the selection. Adding one already selected
// is idempotent; adding to a full selection is a silent no-op.
func CompareAdd(svc comparesvc.Service, products catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := resolveCompareItem(r, products)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.Add(r.Context(), sessionID, item)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// CompareToggle adds or removes a product from the selection. Toggling a new
// product into a full selection is a silent no-op.
func CompareToggle(svc comparesvc.Service, products catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := resolveCompareItem(r, products)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.Toggle(r.Context(), sessionID, item)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// CompareContains reports whether a product is in the session's selection.
func CompareContains(svc comparesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := productIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in, err := svc.Contains(r.Context(), sessionID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"in_compare": in})
	}
}

// CompareRemove drops a product from the selection.
func CompareRemove(svc comparesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := productIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.Remove(r.Context(), sessionID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// CompareClear empties the selection and closes the modal.
func CompareClear(svc comparesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.Clear(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// CompareModalOpen opens the comparison modal when at least two products are
// selected; with fewer it is a no-op.
func CompareModalOpen(svc comparesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.OpenModal(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// CompareModalClose closes the comparison modal.
func CompareModalClose(svc comparesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.CloseModal(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}
