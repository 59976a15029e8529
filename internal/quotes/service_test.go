package quotes

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
)

func setupQuotesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	quoteRequests := `
CREATE TABLE IF NOT EXISTS quote_requests (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  company_name TEXT NOT NULL,
  contact_name TEXT NOT NULL,
  contact_phone TEXT NOT NULL,
  contact_email TEXT NOT NULL,
  message TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	quoteItems := `
CREATE TABLE IF NOT EXISTS quote_items (
  id TEXT PRIMARY KEY,
  quote_request_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(quoteRequests).Error)
	require.NoError(t, db.Exec(quoteItems).Error)
	return db
}

func newTestQuoteService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(db, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), nil)
	require.NoError(t, err)
	return svc
}

func validInput() CreateInput {
	return CreateInput{
		CompanyName:  "Delta Diagnostics Ltd",
		ContactName:  "Farhana Akter",
		ContactPhone: "+8801713334455",
		ContactEmail: "procurement@deltadx.example",
		Items: []ItemInput{
			{ProductID: uuid.New(), ProductName: "Biosafety Cabinet", Quantity: 2},
		},
	}
}

func TestCreatePersistsQuoteWithItems(t *testing.T) {
	db := setupQuotesTestDB(t)
	svc := newTestQuoteService(t, db)

	quote, err := svc.Create(context.Background(), "s1", validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, quote.Status)

	loaded, err := svc.Detail(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Biosafety Cabinet", loaded.Items[0].ProductName)
	assert.Equal(t, 2, loaded.Items[0].Quantity)
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	db := setupQuotesTestDB(t)
	svc := newTestQuoteService(t, db)

	input := validInput()
	input.Items = nil
	_, err := svc.Create(context.Background(), "s1", input)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestUpdateStatusEnforcesStateMachine(t *testing.T) {
	db := setupQuotesTestDB(t)
	svc := newTestQuoteService(t, db)

	quote, err := svc.Create(context.Background(), "s1", validInput())
	require.NoError(t, err)

	quoted, err := svc.UpdateStatus(context.Background(), quote.ID, StatusQuoted)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, quoted.Status)

	// quoted cannot go back to pending
	_, err = svc.UpdateStatus(context.Background(), quote.ID, StatusPending)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	closed, err := svc.UpdateStatus(context.Background(), quote.ID, StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)

	// closed is final
	_, err = svc.UpdateStatus(context.Background(), quote.ID, StatusQuoted)
	require.Error(t, err)
}

func TestListFiltersByStatus(t *testing.T) {
	db := setupQuotesTestDB(t)
	svc := newTestQuoteService(t, db)
	ctx := context.Background()

	first, err := svc.Create(ctx, "s1", validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "s2", validInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, first.ID, StatusQuoted)
	require.NoError(t, err)

	page, err := svc.List(ctx, StatusPending, "", 10)
	require.NoError(t, err)
	assert.Len(t, page.Quotes, 1)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, StatusPending, page.Quotes[0].Status)
}
