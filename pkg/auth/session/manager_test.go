package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/kv"
)

func TestManagerGenerateAndRotate(t *testing.T) {
	store := kv.NewMemory()
	manager := &Manager{store: store, ttl: time.Hour}

	ctx := context.Background()
	accessID := "access-123"
	token, err := manager.Generate(ctx, accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if stored, err := store.Get(ctx, kv.AdminSessionKey(accessID)); err != nil || stored != token {
		t.Fatalf("expected stored token %q, got %q (%v)", token, stored, err)
	}

	if _, _, err := manager.Rotate(ctx, accessID, "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}

	newAccessID, newToken, err := manager.Rotate(ctx, accessID, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := store.Get(ctx, kv.AdminSessionKey(accessID)); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("old access key left behind")
	}
	if stored, err := store.Get(ctx, kv.AdminSessionKey(newAccessID)); err != nil || stored != newToken {
		t.Fatalf("expected new token stored, got %q (%v)", stored, err)
	}
}

func TestManagerHasSessionAndRevoke(t *testing.T) {
	store := kv.NewMemory()
	manager := &Manager{store: store, ttl: time.Hour}

	ctx := context.Background()
	accessID := "access-456"
	if _, err := manager.Generate(ctx, accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	ok, err := manager.HasSession(ctx, accessID)
	if err != nil || !ok {
		t.Fatalf("expected active session, got ok=%v err=%v", ok, err)
	}

	if err := manager.Revoke(ctx, accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, accessID)
	if err != nil || ok {
		t.Fatalf("expected revoked session, got ok=%v err=%v", ok, err)
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	store := kv.NewMemory()

	if _, err := NewManager(nil, config.JWTConfig{SessionTTLMinutes: 60, ExpirationMinutes: 15}); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewManager(store, config.JWTConfig{SessionTTLMinutes: 0, ExpirationMinutes: 15}); err == nil {
		t.Fatal("expected error for zero session ttl")
	}
	if _, err := NewManager(store, config.JWTConfig{SessionTTLMinutes: 10, ExpirationMinutes: 15}); err == nil {
		t.Fatal("expected error when session ttl does not exceed access ttl")
	}
	if _, err := NewManager(store, config.JWTConfig{SessionTTLMinutes: 60, ExpirationMinutes: 15}); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}
