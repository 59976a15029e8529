package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

// Service exposes the catalog to the storefront and the admin panel.
type Service interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListProducts(ctx context.Context, filter ListFilter, cursor string, limit int) (ProductPage, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// ProductInput is the admin write payload.
type ProductInput struct {
	CategoryID        *uuid.UUID `json:"category_id"`
	SKU               string     `json:"sku" validate:"required"`
	Slug              string     `json:"slug" validate:"required"`
	Name              string     `json:"name" validate:"required"`
	NameBn            string     `json:"name_bn" validate:"required"`
	Description       *string    `json:"description"`
	DescriptionBn     *string    `json:"description_bn"`
	Brand             *string    `json:"brand"`
	ModelNumber       *string    `json:"model_number"`
	PriceCents        int64      `json:"price_cents" validate:"gte=0"`
	ComparePriceCents *int64     `json:"compare_price_cents"`
	ImageURL          *string    `json:"image_url"`
	InStock           bool       `json:"in_stock"`
	IsFeatured        bool       `json:"is_featured"`
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing categories")
	}
	return categories, nil
}

func (s *service) ListProducts(ctx context.Context, filter ListFilter, cursor string, limit int) (ProductPage, error) {
	page, err := s.repo.ListProducts(ctx, filter, cursor, limit)
	if err != nil {
		return ProductPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing products")
	}
	return page, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}
	product, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return product, nil
}

func (s *service) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	products, err := s.repo.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading products")
	}
	return products, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:                uuid.New(),
		CategoryID:        input.CategoryID,
		SKU:               strings.TrimSpace(input.SKU),
		Slug:              strings.TrimSpace(input.Slug),
		Name:              strings.TrimSpace(input.Name),
		NameBn:            strings.TrimSpace(input.NameBn),
		Description:       input.Description,
		DescriptionBn:     input.DescriptionBn,
		Brand:             input.Brand,
		ModelNumber:       input.ModelNumber,
		PriceCents:        input.PriceCents,
		ComparePriceCents: input.ComparePriceCents,
		ImageURL:          input.ImageURL,
		InStock:           input.InStock,
		IsActive:          true,
		IsFeatured:        input.IsFeatured,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating product")
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}

	product.CategoryID = input.CategoryID
	product.SKU = strings.TrimSpace(input.SKU)
	product.Slug = strings.TrimSpace(input.Slug)
	product.Name = strings.TrimSpace(input.Name)
	product.NameBn = strings.TrimSpace(input.NameBn)
	product.Description = input.Description
	product.DescriptionBn = input.DescriptionBn
	product.Brand = input.Brand
	product.ModelNumber = input.ModelNumber
	product.PriceCents = input.PriceCents
	product.ComparePriceCents = input.ComparePriceCents
	product.ImageURL = input.ImageURL
	product.InStock = input.InStock
	product.IsFeatured = input.IsFeatured
	product.Category = nil

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating product")
	}
	return product, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting product")
	}
	return nil
}

func validateProductInput(input ProductInput) error {
	if strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(input.Slug) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku and slug are required")
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.NameBn) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and name_bn are required")
	}
	if input.PriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.ComparePriceCents != nil && *input.ComparePriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "compare price must be non-negative")
	}
	return nil
}
