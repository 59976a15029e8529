package kv

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound reports an absent key. Malformed payloads are the caller's
// concern; the store only moves opaque string blobs.
var ErrNotFound = errors.New("kv: key not found")

// Store is the durable key->blob boundary shared by the session stores. Each
// store owns its own key namespace; there are no cross-key transactions.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

const (
	keyNamespace  = "labstore"
	cartPrefix    = "cart"
	recentPrefix  = "recent"
	draftPrefix   = "draft"
	densityPrefix = "density"
	sessionPrefix = "session"
)

// DraftKeyNew is the product-key sentinel for a not-yet-created product.
// Two concurrent "new product" editors in the same admin session share this
// key and overwrite each other's draft; that is the observed behavior of the
// storefront and is kept as-is.
const DraftKeyNew = "new"

// CartKey returns the cart blob key for a shopper session.
func CartKey(sessionID string) string {
	return buildKey(cartPrefix, sessionID)
}

// RecentKey returns the recently-viewed blob key for a shopper session.
func RecentKey(sessionID string) string {
	return buildKey(recentPrefix, sessionID)
}

// DraftKey returns the product-draft blob key. productKey is a product id or
// DraftKeyNew.
func DraftKey(sessionID, productKey string) string {
	return buildKey(draftPrefix, sessionID, productKey)
}

// DensityKey returns the grid-density blob key for one device class. The two
// device classes deliberately map to distinct keys so a write to one never
// touches the other.
func DensityKey(sessionID, deviceClass string) string {
	return buildKey(densityPrefix, sessionID, deviceClass)
}

// AdminSessionKey returns the key holding an admin access session record.
func AdminSessionKey(accessID string) string {
	return buildKey(sessionPrefix, "access", accessID)
}

func buildKey(parts ...string) string {
	if len(parts) == 0 {
		return keyNamespace
	}
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
