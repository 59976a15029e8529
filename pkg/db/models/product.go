package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a canonical catalog listing.
type Product struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID        *uuid.UUID `gorm:"column:category_id;type:uuid;index"`
	SKU               string     `gorm:"column:sku;not null;uniqueIndex"`
	Slug              string     `gorm:"column:slug;not null;uniqueIndex"`
	Name              string     `gorm:"column:name;not null"`
	NameBn            string     `gorm:"column:name_bn;not null"`
	Description       *string    `gorm:"column:description"`
	DescriptionBn     *string    `gorm:"column:description_bn"`
	Brand             *string    `gorm:"column:brand"`
	ModelNumber       *string    `gorm:"column:model_number"`
	PriceCents        int64      `gorm:"column:price_cents;not null"`
	ComparePriceCents *int64     `gorm:"column:compare_price_cents"`
	ImageURL          *string    `gorm:"column:image_url"`
	InStock           bool       `gorm:"column:in_stock;not null;default:true"`
	IsActive          bool       `gorm:"column:is_active;not null;default:true"`
	IsFeatured        bool       `gorm:"column:is_featured;not null;default:false"`
	Category          *Category  `gorm:"foreignKey:CategoryID"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
