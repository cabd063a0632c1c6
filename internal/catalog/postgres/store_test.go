package postgres

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/query"
	"github.com/fittingroom/storefront/pkg/database"
	apperrors "github.com/fittingroom/storefront/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock := database.NewMockPool(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mock, "postgres://db:5432/fittingroom", logger), mock
}

var productColumns = []string{
	"id", "source", "reference", "product_id", "name", "brand", "category", "color", "price",
	"availability", "image_url", "product_url", "sizes", "styles", "description",
}

func str(s string) *string { return &s }

func productRow(id int64, ref, name, brand string, price float64) []any {
	var nameCol *string
	if name != "" {
		nameCol = str(name)
	}
	return []any{
		id, "fixture", str(ref), (*string)(nil), nameCol, str(brand), str("dresses"), (*string)(nil), &price,
		(*string)(nil), str("//cdn.example.com/" + ref + ".jpg"), (*string)(nil), str("S,M"), str("floral"), (*string)(nil),
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestStore_Search_Success(t *testing.T) {
	store, mock := setupStore(t)

	q := query.Build(domain.Filter{Keywords: []string{"floral"}, Brands: []string{"ganni"}, Page: 2, PageSize: 2})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products WHERE")).
		WithArgs("%floral%", "%floral%", "%floral%", "%floral%", "%ganni%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+selectList+" FROM products WHERE")).
		WithArgs("%floral%", "%floral%", "%floral%", "%floral%", "%ganni%", 2, 2).
		WillReturnRows(pgxmock.NewRows(productColumns).
			AddRow(productRow(3, "floral-a", "Floral Wrap Dress", "Ganni", 70)...).
			AddRow(productRow(4, "floral-b", "Floral Mini Dress", "Ganni", 65.5)...))

	res, err := store.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 2, res.Page)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "floral-a", res.Items[0].ID)
	assert.Equal(t, "https://cdn.example.com/floral-a.jpg", res.Items[0].ImageURL)
	assert.Equal(t, "dresses", res.Items[0].Category)
	assert.InDelta(t, 65.5, res.Items[1].Price, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Search_DropsMalformedRows(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT id, source").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(productColumns).
			AddRow(productRow(1, "a", "Silk Scarf", "Toteme", 90)...).
			AddRow(productRow(2, "b", "", "Toteme", 40)...))

	res, err := store.Search(context.Background(), query.Build(domain.Filter{}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Silk Scarf", res.Items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Search_PagesOnlyListableRows(t *testing.T) {
	store, mock := setupStore(t)

	listable := regexp.QuoteMeta("WHERE (TRIM(COALESCE(name, '')) <> '') AND (TRIM(COALESCE(brand, '')) <> '')")
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products " + listable + "$").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(45))
	mock.ExpectQuery("SELECT id, source .* FROM products "+listable+" ORDER BY").
		WithArgs(20, 429496700).
		WillReturnRows(pgxmock.NewRows(productColumns))

	res, err := store.Search(context.Background(), query.Build(domain.Filter{Page: 922337203685477581}))
	require.NoError(t, err)
	assert.Equal(t, 45, res.TotalCount)
	assert.Empty(t, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Search_ConnectionErrorIsUnavailable(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))

	_, err := store.Search(context.Background(), query.Build(domain.Filter{}))
	require.Error(t, err)
	assert.True(t, apperrors.IsBackendUnavailable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Search_SQLErrorIsInternal(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, source").
		WillReturnError(&pgconn.PgError{Code: "42703", Message: "column does not exist"})

	_, err := store.Search(context.Background(), query.Build(domain.Filter{}))
	require.Error(t, err)
	assert.False(t, apperrors.IsBackendUnavailable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Product
// ---------------------------------------------------------------------------

func TestStore_Product_Found(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT id, source .* FROM products\\s+WHERE product_id = \\$1").
		WithArgs("gown-3").
		WillReturnRows(pgxmock.NewRows(productColumns).
			AddRow(productRow(9, "gown-3", "Evening Gown 3", "Reformation", 150)...))

	p, err := store.Product(context.Background(), "gown-3")
	require.NoError(t, err)
	assert.Equal(t, "Evening Gown 3", p.Name)
	assert.Equal(t, "gown-3", p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Product_NotFound(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT id, source").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Product(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Brands
// ---------------------------------------------------------------------------

func TestStore_Brands(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT brand, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"brand", "count", "image_url"}).
			AddRow("COS", 15, str("https://cdn.example.com/cos.jpg")).
			AddRow("Arket", 18, (*string)(nil)).
			AddRow("Acne Studios", 15, str("not a url")))

	brands, err := store.Brands(context.Background())
	require.NoError(t, err)
	require.Len(t, brands, 3)
	assert.Equal(t, "Arket", brands[0].Brand)
	assert.Equal(t, "Acne Studios", brands[1].Brand)
	assert.Equal(t, "acne-studios", brands[1].Slug)
	assert.Empty(t, brands[1].ImageURL)
	assert.Equal(t, "https://cdn.example.com/cos.jpg", brands[2].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Brands_Empty(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("SELECT brand, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"brand", "count", "image_url"}))

	brands, err := store.Brands(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, brands)
	assert.Empty(t, brands)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Upsert
// ---------------------------------------------------------------------------

func TestStore_Upsert_CommitsBatch(t *testing.T) {
	store, mock := setupStore(t)

	scraped := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []catalog.Entry{
		{Source: "csv", Reference: "a", Name: "Silk Scarf", Brand: "Toteme", Price: 90, PriceCents: 9000, ScrapedAt: scraped},
		{Source: "csv", Reference: "b", Name: "Wool Coat", Brand: "Toteme", Price: 540, PriceCents: 54000, Raw: "not json"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(pgxmock.AnyArg(), "a", pgxmock.AnyArg(), "Silk Scarf", "Toteme", pgxmock.AnyArg(), pgxmock.AnyArg(),
			90.0, int64(9000), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), scraped).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO products").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := store.Upsert(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Upsert_RollsBackOnError(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WillReturnError(&pgconn.PgError{Code: "23502", Message: "null value in column"})
	mock.ExpectRollback()

	_, err := store.Upsert(context.Background(), []catalog.Entry{{Source: "csv", Reference: "a", Name: "x", Brand: "y"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert csv/a")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertArgs_RawPayload(t *testing.T) {
	args, err := upsertArgs(catalog.Entry{Raw: `{"sku":"1"}`})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"sku":"1"}`), args[17])

	args, err = upsertArgs(catalog.Entry{Raw: "plain text"})
	require.NoError(t, err)
	assert.Equal(t, []byte(`"plain text"`), args[17])

	args, err = upsertArgs(catalog.Entry{})
	require.NoError(t, err)
	assert.Nil(t, args[17])
	assert.Nil(t, args[18])
}

// ---------------------------------------------------------------------------
// Ping / Close
// ---------------------------------------------------------------------------

func TestStore_Ping(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectPing()
	assert.NoError(t, store.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err := store.Ping(context.Background())
	assert.True(t, apperrors.IsBackendUnavailable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Address(t *testing.T) {
	store, _ := setupStore(t)

	assert.Equal(t, catalog.BackendPostgres, store.Name())
	assert.Equal(t, "postgres://db:5432/fittingroom", store.Address())
}

func TestMigrations_AreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
