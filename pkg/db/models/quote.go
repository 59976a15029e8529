package models

import (
	"time"

	"github.com/google/uuid"
)

// QuoteRequest is a B2B request-for-quotation submitted from the storefront.
type QuoteRequest struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	SessionID    string      `gorm:"column:session_id;not null;index"`
	Status       string      `gorm:"column:status;not null;default:'pending'"`
	CompanyName  string      `gorm:"column:company_name;not null"`
	ContactName  string      `gorm:"column:contact_name;not null"`
	ContactPhone string      `gorm:"column:contact_phone;not null"`
	ContactEmail string      `gorm:"column:contact_email;not null"`
	Message      *string     `gorm:"column:message"`
	Items        []QuoteItem `gorm:"foreignKey:QuoteRequestID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt    time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// QuoteItem is one requested product line inside a quote request.
type QuoteItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	QuoteRequestID uuid.UUID `gorm:"column:quote_request_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
