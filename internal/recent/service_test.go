package recent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

func newTestService(t *testing.T, store kv.Store, capacity int) Service {
	t.Helper()
	svc, err := NewService(Params{
		Store:  store,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config: config.RecentConfig{Capacity: capacity, TTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func addProduct(t *testing.T, svc Service, sessionID string, id uuid.UUID, n int) []Entry {
	t.Helper()
	entries, err := svc.Add(context.Background(), sessionID, AddInput{
		ProductID: id,
		Slug:      fmt.Sprintf("product-%d", n),
		Name:      fmt.Sprintf("Product %d", n),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return entries
}

func TestAddKeepsMostRecentFirstAndDedups(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, kv.NewMemory(), 10)

	first, second, third := uuid.New(), uuid.New(), uuid.New()
	addProduct(t, svc, "s1", first, 1)
	addProduct(t, svc, "s1", second, 2)
	addProduct(t, svc, "s1", third, 3)

	// re-view the first product: it moves to the front, no duplicate
	entries := addProduct(t, svc, "s1", first, 1)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []uuid.UUID{first, third, second}
	for i, id := range want {
		if entries[i].ProductID != id {
			t.Errorf("position %d = %s, want %s", i, entries[i].ProductID, id)
		}
	}
}

func TestAddTruncatesToCapacity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, kv.NewMemory(), 10)

	ids := make([]uuid.UUID, 12)
	var entries []Entry
	for i := range ids {
		ids[i] = uuid.New()
		entries = addProduct(t, svc, "s1", ids[i], i)
	}

	if len(entries) != 10 {
		t.Fatalf("expected ledger capped at 10, got %d", len(entries))
	}
	if entries[0].ProductID != ids[11] {
		t.Errorf("newest view should lead the ledger")
	}
	// oldest two views fell off
	for _, entry := range entries {
		if entry.ProductID == ids[0] || entry.ProductID == ids[1] {
			t.Errorf("expected oldest entries evicted, found %s", entry.ProductID)
		}
	}
}

func TestAddCarriesProductSnapshot(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory()
	svc := newTestService(t, store, 10)

	compareAt := int64(5200000)
	categoryID := uuid.New()
	image := "https://cdn.example.com/ryzen.jpg"
	productID := uuid.New()
	if _, err := svc.Add(context.Background(), "s1", AddInput{
		ProductID:         productID,
		Slug:              "ryzen-7-7800x3d",
		Name:              "Ryzen 7 7800X3D",
		NameBn:            "রাইজেন ৭",
		PriceCents:        4500000,
		ComparePriceCents: &compareAt,
		InStock:           true,
		CategoryID:        &categoryID,
		ImageURL:          &image,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// reload through the durable blob, not the return value
	entries, err := svc.List(context.Background(), "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.PriceCents != 4500000 {
		t.Errorf("PriceCents = %d, want 4500000", got.PriceCents)
	}
	if got.ComparePriceCents == nil || *got.ComparePriceCents != compareAt {
		t.Errorf("ComparePriceCents = %v, want %d", got.ComparePriceCents, compareAt)
	}
	if !got.InStock {
		t.Errorf("InStock = false, want true")
	}
	if got.CategoryID == nil || *got.CategoryID != categoryID {
		t.Errorf("CategoryID = %v, want %s", got.CategoryID, categoryID)
	}
	if got.ImageURL == nil || *got.ImageURL != image {
		t.Errorf("ImageURL = %v, want %s", got.ImageURL, image)
	}
}

func TestListExcludingFiltersCurrentProduct(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, kv.NewMemory(), 10)
	current, other := uuid.New(), uuid.New()
	addProduct(t, svc, "s1", current, 1)
	addProduct(t, svc, "s1", other, 2)

	entries, err := svc.ListExcluding(context.Background(), "s1", current)
	if err != nil {
		t.Fatalf("ListExcluding: %v", err)
	}
	if len(entries) != 1 || entries[0].ProductID != other {
		t.Fatalf("expected only the other product, got %v", entries)
	}
}

func TestClearRemovesDurableRecord(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory()
	svc := newTestService(t, store, 10)
	addProduct(t, svc, "s1", uuid.New(), 1)

	if err := svc.Clear(context.Background(), "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Get(context.Background(), kv.RecentKey("s1")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected recent key deleted, got err=%v", err)
	}
}

func TestListHydratesEmptyOnCorruptBlob(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory()
	ctx := context.Background()
	if err := store.Set(ctx, kv.RecentKey("s1"), `{"entries":"nope"}`, time.Hour); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	svc := newTestService(t, store, 10)
	entries, err := svc.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger from corrupt blob, got %v", entries)
	}
}
