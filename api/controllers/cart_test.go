package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/api/middleware"
	cartsvc "github.com/sigmalabbd/labstore-backend/internal/cart"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

type quantityRecordingCart struct {
	called   bool
	quantity int
}

func (c *quantityRecordingCart) Get(ctx context.Context, sessionID string) (cartsvc.Cart, error) {
	panic("unimplemented")
}

func (c *quantityRecordingCart) AddItem(ctx context.Context, sessionID string, input cartsvc.AddItemInput) (cartsvc.Cart, error) {
	panic("unimplemented")
}

func (c *quantityRecordingCart) UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, quantity int) (cartsvc.Cart, error) {
	c.called = true
	c.quantity = quantity
	return cartsvc.Cart{Items: []cartsvc.Item{}}, nil
}

func (c *quantityRecordingCart) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (cartsvc.Cart, error) {
	panic("unimplemented")
}

func (c *quantityRecordingCart) Clear(ctx context.Context, sessionID string) error {
	panic("unimplemented")
}

func patchQuantity(t *testing.T, svc cartsvc.Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	router := chi.NewRouter()
	router.Patch("/cart/items/{productId}", CartUpdateQuantity(svc, logg))

	req := httptest.NewRequest(http.MethodPatch, "/cart/items/"+uuid.NewString(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithSessionID(req.Context(), uuid.NewString()))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCartUpdateQuantityAcceptsZero(t *testing.T) {
	t.Parallel()

	svc := &quantityRecordingCart{}
	resp := patchQuantity(t, svc, `{"quantity":0}`)

	// zero means remove the line; it must reach the service, not fail validation
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for quantity 0, got %d: %s", resp.Code, resp.Body.String())
	}
	if !svc.called {
		t.Fatal("expected UpdateQuantity called")
	}
	if svc.quantity != 0 {
		t.Fatalf("service saw quantity %d, want 0", svc.quantity)
	}
}

func TestCartUpdateQuantityAcceptsNegative(t *testing.T) {
	t.Parallel()

	svc := &quantityRecordingCart{}
	resp := patchQuantity(t, svc, `{"quantity":-1}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for negative quantity, got %d: %s", resp.Code, resp.Body.String())
	}
	if !svc.called || svc.quantity != -1 {
		t.Fatalf("service saw called=%v quantity=%d, want -1", svc.called, svc.quantity)
	}
}

func TestCartUpdateQuantityRequiresField(t *testing.T) {
	t.Parallel()

	svc := &quantityRecordingCart{}
	resp := patchQuantity(t, svc, `{}`)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing quantity, got %d", resp.Code)
	}
	if svc.called {
		t.Fatal("service must not be called without a quantity")
	}
}
