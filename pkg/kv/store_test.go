package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBuildKeysAreNamespaced(t *testing.T) {
	t.Parallel()

	if got := CartKey("s1"); got != "labstore:cart:s1" {
		t.Fatalf("unexpected cart key %q", got)
	}
	if got := RecentKey("s1"); got != "labstore:recent:s1" {
		t.Fatalf("unexpected recent key %q", got)
	}
	if got := DraftKey("s1", DraftKeyNew); got != "labstore:draft:s1:new" {
		t.Fatalf("unexpected draft key %q", got)
	}
	if got := DensityKey("s1", "mobile"); got != "labstore:density:s1:mobile" {
		t.Fatalf("unexpected density key %q", got)
	}
	if got := DensityKey("s1", "desktop"); got == DensityKey("s1", "mobile") {
		t.Fatalf("device classes must map to distinct keys")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get returned %q, %v", got, err)
	}

	if err := store.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	ctx := context.Background()
	if err := store.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("value should be live before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expired entry should be purged")
	}
}
