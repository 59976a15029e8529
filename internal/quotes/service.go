package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigmalabbd/labstore-backend/internal/telemetry"
	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/pagination"
)

// Quote request statuses. A request moves pending → quoted → closed, or is
// closed directly.
const (
	StatusPending = "pending"
	StatusQuoted  = "quoted"
	StatusClosed  = "closed"
)

var statusTransitions = map[string]map[string]struct{}{
	StatusPending: {StatusQuoted: {}, StatusClosed: {}},
	StatusQuoted:  {StatusClosed: {}},
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	ProductName string    `json:"product_name" validate:"required"`
	Quantity    int       `json:"quantity" validate:"gte=1"`
}

// CreateInput is the storefront RFQ payload.
type CreateInput struct {
	CompanyName  string      `json:"company_name" validate:"required"`
	ContactName  string      `json:"contact_name" validate:"required"`
	ContactPhone string      `json:"contact_phone" validate:"required"`
	ContactEmail string      `json:"contact_email" validate:"required,email"`
	Message      *string     `json:"message"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// Page is one cursor page of quote requests.
type Page struct {
	Quotes     []models.QuoteRequest `json:"quotes"`
	Total      int64                 `json:"total"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// Service exposes RFQ submission and the admin review surface.
type Service interface {
	Create(ctx context.Context, sessionID string, input CreateInput) (*models.QuoteRequest, error)
	List(ctx context.Context, status, cursor string, limit int) (Page, error)
	Detail(ctx context.Context, id uuid.UUID) (*models.QuoteRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.QuoteRequest, error)
}

type service struct {
	db   *gorm.DB
	logg *logger.Logger
	sink *telemetry.Sink
}

// NewService builds the quotes service.
func NewService(db *gorm.DB, logg *logger.Logger, sink *telemetry.Sink) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{db: db, logg: logg, sink: sink}, nil
}

func (s *service) Create(ctx context.Context, sessionID string, input CreateInput) (*models.QuoteRequest, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(input.CompanyName) == "" || strings.TrimSpace(input.ContactName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company and contact names are required")
	}
	if strings.TrimSpace(input.ContactPhone) == "" || strings.TrimSpace(input.ContactEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact phone and email are required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a quote request needs at least one item")
	}

	quote := &models.QuoteRequest{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Status:       StatusPending,
		CompanyName:  strings.TrimSpace(input.CompanyName),
		ContactName:  strings.TrimSpace(input.ContactName),
		ContactPhone: strings.TrimSpace(input.ContactPhone),
		ContactEmail: strings.TrimSpace(input.ContactEmail),
		Message:      input.Message,
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote items need a product id and a positive quantity")
		}
		quote.Items = append(quote.Items, models.QuoteItem{
			ID:             uuid.New(),
			QuoteRequestID: quote.ID,
			ProductID:      item.ProductID,
			ProductName:    strings.TrimSpace(item.ProductName),
			Quantity:       item.Quantity,
		})
	}

	if err := s.db.WithContext(ctx).Create(quote).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting quote request")
	}

	if s.sink != nil {
		s.sink.Emit(ctx, telemetry.Event{
			Name:      telemetry.EventQuoteSubmitted,
			SessionID: sessionID,
			Props: map[string]any{
				"quote_id":   quote.ID.String(),
				"item_count": len(quote.Items),
			},
		})
	}
	return quote, nil
}

func (s *service) List(ctx context.Context, status, cursor string, limit int) (Page, error) {
	normalizedLimit := pagination.NormalizeLimit(limit)
	limitWithBuffer := pagination.LimitWithBuffer(limit)
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(cursor))
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	base := s.db.WithContext(ctx).Model(&models.QuoteRequest{})
	if status = strings.TrimSpace(status); status != "" {
		base = base.Where("status = ?", status)
	}

	query := base.Session(&gorm.Session{})
	if decodedCursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID,
		)
	}

	var records []models.QuoteRequest
	err = query.
		Preload("Items").
		Order("created_at DESC").Order("id DESC").
		Limit(limitWithBuffer).
		Find(&records).Error
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing quote requests")
	}

	rows := records
	nextCursor := ""
	if len(records) > normalizedLimit {
		rows = records[:normalizedLimit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting quote requests")
	}

	return Page{Quotes: rows, Total: total, NextCursor: nextCursor}, nil
}

func (s *service) Detail(ctx context.Context, id uuid.UUID) (*models.QuoteRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id is required")
	}
	var quote models.QuoteRequest
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading quote request")
	}
	return &quote, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.QuoteRequest, error) {
	quote, err := s.Detail(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, ok := statusTransitions[quote.Status]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote status is final: "+quote.Status)
	}
	if _, ok := allowed[status]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot transition quote from %s to %s", quote.Status, status))
	}

	err = s.db.WithContext(ctx).
		Model(&models.QuoteRequest{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating quote status")
	}
	quote.Status = status
	return quote, nil
}
