package cart

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/pkg/config"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

type failingStore struct {
	kv.Store
	getErr error
	setErr error
}

func (f *failingStore) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func newTestService(t *testing.T, store kv.Store) Service {
	t.Helper()
	svc, err := NewService(Params{
		Store:  store,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config: config.CartConfig{TTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestAddItemMergesSameProduct(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, kv.NewMemory())
	ctx := context.Background()
	productID := uuid.New()

	input := AddItemInput{
		ProductID:      productID,
		Slug:           "ph-meter",
		Name:           "pH Meter",
		NameBn:         "পিএইচ মিটার",
		UnitPriceCents: 250000,
		Quantity:       1,
	}

	if _, err := svc.AddItem(ctx, "s1", input); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	got, err := svc.AddItem(ctx, "s1", input)
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}

	if len(got.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(got.Items))
	}
	if got.Items[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", got.Items[0].Quantity)
	}
	if got.ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2", got.ItemCount)
	}
	if want := int64(500000); got.SubtotalCents != want {
		t.Errorf("SubtotalCents = %d, want %d", got.SubtotalCents, want)
	}
}

func TestUpdateQuantityFloorRemovesLine(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, kv.NewMemory())
	ctx := context.Background()
	productID := uuid.New()

	if _, err := svc.AddItem(ctx, "s1", AddItemInput{
		ProductID:      productID,
		Slug:           "burette",
		Name:           "Burette 50ml",
		UnitPriceCents: 120000,
		Quantity:       3,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	got, err := svc.UpdateQuantity(ctx, "s1", productID, 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected quantity floor to remove the line, got %d items", len(got.Items))
	}

	// redundant removal stays a no-op
	got, err = svc.RemoveItem(ctx, "s1", productID)
	if err != nil {
		t.Fatalf("RemoveItem after removal: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(got.Items))
	}
}

func TestGetHydratesEmptyOnCorruptBlob(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory()
	ctx := context.Background()
	if err := store.Set(ctx, kv.CartKey("s1"), "{not json", time.Hour); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	svc := newTestService(t, store)
	got, err := svc.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Items) != 0 || got.ItemCount != 0 {
		t.Fatalf("expected empty cart from corrupt blob, got %+v", got)
	}
}

func TestAddItemAbortsOnStoreFailure(t *testing.T) {
	t.Parallel()

	store := &failingStore{Store: kv.NewMemory(), getErr: errors.New("redis down")}
	svc := newTestService(t, store)

	_, err := svc.AddItem(context.Background(), "s1", AddItemInput{
		ProductID:      uuid.New(),
		Slug:           "hotplate",
		Name:           "Hotplate Stirrer",
		UnitPriceCents: 900000,
	})
	if err == nil {
		t.Fatal("expected dependency failure to abort the mutation")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Errorf("expected dependency error, got %v", err)
	}
}

func TestClearDeletesDurableRecord(t *testing.T) {
	t.Parallel()

	store := kv.NewMemory()
	svc := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "s1", AddItemInput{
		ProductID:      uuid.New(),
		Slug:           "centrifuge",
		Name:           "Benchtop Centrifuge",
		UnitPriceCents: 4500000,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := svc.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Get(ctx, kv.CartKey("s1")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected cart key deleted, got err=%v", err)
	}
}

func TestCartsAreSessionIsolated(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, kv.NewMemory())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "s1", AddItemInput{
		ProductID:      uuid.New(),
		Slug:           "microscope",
		Name:           "Binocular Microscope",
		UnitPriceCents: 7500000,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	other, err := svc.Get(ctx, "s2")
	if err != nil {
		t.Fatalf("Get other session: %v", err)
	}
	if len(other.Items) != 0 {
		t.Fatalf("expected empty cart for other session, got %d items", len(other.Items))
	}
}
