package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one product line in a session cart. At most one line exists per
// product id; adding the same product again merges into the quantity.
type Item struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	Slug           string    `json:"slug" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	NameBn         string    `json:"name_bn"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"gte=0"`
	ImageURL       *string   `json:"image_url,omitempty"`
	Quantity       int       `json:"quantity" validate:"gte=1"`
	AddedAt        time.Time `json:"added_at"`
}

// blob is the persisted cart payload.
type blob struct {
	Items     []Item    `json:"items" validate:"dive"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cart is the read model returned to the API layer. The subtotal is in cents,
// matching the per-line unit prices.
type Cart struct {
	Items         []Item    `json:"items"`
	ItemCount     int       `json:"item_count"`
	SubtotalCents int64     `json:"subtotal_cents"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AddItemInput is the payload for AddItem. Quantity defaults to 1.
type AddItemInput struct {
	ProductID      uuid.UUID
	Slug           string
	Name           string
	NameBn         string
	UnitPriceCents int64
	ImageURL       *string
	Quantity       int
}

func (b blob) view() Cart {
	count := 0
	subtotal := decimal.Zero
	for _, item := range b.Items {
		count += item.Quantity
		line := decimal.NewFromInt(item.UnitPriceCents).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	items := b.Items
	if items == nil {
		items = []Item{}
	}
	return Cart{
		Items:         items,
		ItemCount:     count,
		SubtotalCents: subtotal.IntPart(),
		UpdatedAt:     b.UpdatedAt,
	}
}
