package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	categories := `
CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  name_bn TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  category_id TEXT,
  sku TEXT NOT NULL UNIQUE,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  name_bn TEXT NOT NULL,
  description TEXT,
  description_bn TEXT,
  brand TEXT,
  model_number TEXT,
  price_cents INTEGER NOT NULL,
  compare_price_cents INTEGER,
  image_url TEXT,
  in_stock INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_featured INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(categories).Error)
	require.NoError(t, db.Exec(products).Error)
	return db
}

func newCategory(t *testing.T, db *gorm.DB, slug string, position int) *models.Category {
	t.Helper()
	category := &models.Category{
		ID:       uuid.New(),
		Slug:     slug,
		Name:     "Category " + slug,
		NameBn:   slug + "-bn",
		Position: position,
		IsActive: true,
	}
	require.NoError(t, db.Create(category).Error)
	return category
}

func newProduct(t *testing.T, db *gorm.DB, category *models.Category, slug string, created time.Time, active bool) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + slug,
		Slug:       slug,
		Name:       "Product " + slug,
		NameBn:     slug + "-bn",
		PriceCents: 100000,
		InStock:    true,
		IsActive:   active,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	if category != nil {
		product.CategoryID = &category.ID
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestListProductsPagination(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	category := newCategory(t, db, "glassware", 1)
	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 5; i++ {
		newProduct(t, db, category, fmt.Sprintf("beaker-%d", i), base.Add(time.Duration(i)*time.Minute), true)
	}
	// inactive products never surface
	newProduct(t, db, category, "retired-flask", base.Add(10*time.Minute), false)

	page, err := repo.ListProducts(ctx, ListFilter{}, "", 3)
	require.NoError(t, err)
	assert.Len(t, page.Products, 3)
	assert.EqualValues(t, 5, page.Total)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "beaker-4", page.Products[0].Slug)

	second, err := repo.ListProducts(ctx, ListFilter{}, page.NextCursor, 3)
	require.NoError(t, err)
	assert.Len(t, second.Products, 2)
	assert.Empty(t, second.NextCursor)
	assert.Equal(t, "beaker-0", second.Products[1].Slug)
}

func TestListProductsCategoryFilter(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	glassware := newCategory(t, db, "glassware", 1)
	meters := newCategory(t, db, "meters", 2)
	now := time.Now().UTC()
	newProduct(t, db, glassware, "conical-flask", now, true)
	newProduct(t, db, meters, "ph-meter", now.Add(time.Minute), true)

	page, err := repo.ListProducts(ctx, ListFilter{CategorySlug: "meters"}, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "ph-meter", page.Products[0].Slug)
}

func TestGetBySlugSkipsInactive(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	category := newCategory(t, db, "glassware", 1)
	newProduct(t, db, category, "burette", time.Now().UTC(), true)
	newProduct(t, db, category, "old-burette", time.Now().UTC(), false)

	product, err := repo.GetBySlug(ctx, "burette")
	require.NoError(t, err)
	assert.Equal(t, "burette", product.Slug)
	require.NotNil(t, product.Category)
	assert.Equal(t, "glassware", product.Category.Slug)

	_, err = repo.GetBySlug(ctx, "old-burette")
	assert.True(t, IsNotFound(err))
}

func TestSoftDeleteHidesProduct(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := newProduct(t, db, nil, "centrifuge", time.Now().UTC(), true)
	require.NoError(t, repo.SoftDelete(ctx, product.ID))

	_, err := repo.GetBySlug(ctx, "centrifuge")
	assert.True(t, IsNotFound(err))

	// the row survives for order history
	kept, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, kept.IsActive)

	assert.True(t, IsNotFound(repo.SoftDelete(ctx, uuid.New())))
}

func TestListCategoriesOrdersByPosition(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)

	newCategory(t, db, "meters", 2)
	newCategory(t, db, "glassware", 1)

	categories, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "glassware", categories[0].Slug)
	assert.Equal(t, "meters", categories[1].Slug)
}
