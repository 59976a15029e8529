package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is a submitted checkout; payment settlement happens off-platform.
type Order struct {
	ID            uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	SessionID     string      `gorm:"column:session_id;not null;index"`
	Status        string      `gorm:"column:status;not null;default:'pending'"`
	CustomerName  string      `gorm:"column:customer_name;not null"`
	CustomerPhone string      `gorm:"column:customer_phone;not null"`
	CustomerEmail *string     `gorm:"column:customer_email"`
	ShippingAddr  string      `gorm:"column:shipping_addr;not null"`
	Note          *string     `gorm:"column:note"`
	SubtotalCents int64       `gorm:"column:subtotal_cents;not null"`
	TotalCents    int64       `gorm:"column:total_cents;not null"`
	Items         []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a price-snapshotted cart line attached to an order.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	ProductSlug    string    `gorm:"column:product_slug;not null"`
	SKU            *string   `gorm:"column:sku"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
