package telemetry

import "time"

// Event names emitted by the storefront state services.
const (
	EventCartItemAdded    = "cart_item_added"
	EventCartItemRemoved  = "cart_item_removed"
	EventCartQtyChanged   = "cart_quantity_changed"
	EventCartCleared      = "cart_cleared"
	EventCompareToggled   = "compare_toggled"
	EventCompareCleared   = "compare_cleared"
	EventProductViewed    = "product_viewed"
	EventDraftSaved       = "draft_saved"
	EventDraftDiscarded   = "draft_discarded"
	EventDensityChanged   = "density_changed"
	EventCheckoutSubmitted = "checkout_submitted"
	EventQuoteSubmitted   = "quote_submitted"
)

// Event is a single analytics record. Props carries event-specific fields and
// must be JSON-serializable.
type Event struct {
	Name      string         `json:"name"`
	SessionID string         `json:"session_id"`
	At        time.Time      `json:"at"`
	Props     map[string]any `json:"props,omitempty"`
}
