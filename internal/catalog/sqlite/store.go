// Package sqlite is the embedded-store catalog backend.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/domain"
	"github.com/fittingroom/storefront/internal/normalize"
	"github.com/fittingroom/storefront/internal/query"
	"github.com/fittingroom/storefront/pkg/database"
	"github.com/fittingroom/storefront/pkg/slug"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for the products table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const table = "products"

// Store serves the catalog from an embedded database. The database is
// opened on first use through the handle, so a missing or locked file
// surfaces as BackendUnavailable per request rather than at startup.
type Store struct {
	handle     *database.Handle
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// NewHandle returns a lazily opened handle that migrates on open. Each
// onOpen hook runs after the migrations, every time the database is opened.
func NewHandle(cfg database.SQLiteConfig, logger *slog.Logger, onOpen ...func(context.Context, *sql.DB) error) *database.Handle {
	return database.NewHandle(cfg, func(ctx context.Context, db *sql.DB) error {
		if err := database.RunSQLiteMigrations(ctx, db, Migrations(), logger); err != nil {
			return err
		}
		for _, fn := range onOpen {
			if err := fn(ctx, db); err != nil {
				return err
			}
		}
		return nil
	}, logger)
}

// New returns a store over handle. The store owns the handle and closes it.
func New(handle *database.Handle, logger *slog.Logger) *Store {
	return &Store{
		handle:     handle,
		normalizer: normalize.New(catalog.BackendSQLite, logger),
		logger:     logger,
	}
}

func (s *Store) Name() string    { return catalog.BackendSQLite }
func (s *Store) Address() string { return "file:" + s.handle.Path() }

func (s *Store) db(ctx context.Context) (*sql.DB, error) {
	db, err := s.handle.DB(ctx)
	if err != nil {
		return nil, catalog.Unavailable(s.Name(), err)
	}
	return db, nil
}

// classify maps driver errors onto the gateway taxonomy.
func (s *Store) classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, database.ErrClosed) || database.IsConnectionError(err) {
		return catalog.Unavailable(s.Name(), err)
	}
	return fmt.Errorf("sqlite catalog: %w", err)
}

func (s *Store) Search(ctx context.Context, q query.Query) (*domain.SearchResult, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	st, err := query.SQLite.Render(q.Listable(), table, "*", query.ProductColumns)
	if err != nil {
		return nil, err
	}

	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, "count_products", st.CountQuery)
	var total int
	err = db.QueryRowContext(ctx, st.CountQuery, st.CountArgs...).Scan(&total)
	end(err)
	if err != nil {
		return nil, s.classify(err)
	}

	records, err := s.query(ctx, "search_products", st.Query, st.Args...)
	if err != nil {
		return nil, err
	}
	return domain.NewSearchResult(s.normalizer.Products(ctx, records), total, q.Page), nil
}

func (s *Store) query(ctx context.Context, op, stmt string, args ...any) (_ []normalize.Record, err error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, op, stmt)
	defer func() { end(err) }()

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, s.classify(err)
	}
	defer func() { _ = rows.Close() }()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, s.classify(err)
	}
	return records, nil
}

// scanRecords reads every row into a column-keyed record.
func scanRecords(rows *sql.Rows) ([]normalize.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []normalize.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(normalize.Record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const productByID = `SELECT * FROM products
WHERE product_id = ?
   OR (COALESCE(product_id, '') = '' AND reference = ?)
   OR (COALESCE(product_id, '') = '' AND COALESCE(reference, '') = '' AND CAST(id AS TEXT) = ?)
ORDER BY created_at DESC, id DESC
LIMIT 1`

// Product looks a product up by the same id the normalizer assigns.
func (s *Store) Product(ctx context.Context, id string) (*domain.Product, error) {
	records, err := s.query(ctx, "get_product", productByID, id, id, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, catalog.ProductNotFound(id)
	}
	p, ok := s.normalizer.Product(ctx, records[0])
	if !ok {
		return nil, catalog.ProductNotFound(id)
	}
	return &p, nil
}

const brandListing = `SELECT
    brand,
    COUNT(*) AS count,
    (SELECT image_url FROM products p2
      WHERE p2.brand = products.brand AND COALESCE(p2.image_url, '') <> ''
      ORDER BY p2.id LIMIT 1) AS image_url
FROM products
WHERE TRIM(COALESCE(brand, '')) <> '' AND TRIM(COALESCE(name, '')) <> ''
GROUP BY brand`

// Brands lists brands with product counts and a representative image.
func (s *Store) Brands(ctx context.Context) ([]domain.BrandSummary, error) {
	records, err := s.query(ctx, "list_brands", brandListing)
	if err != nil {
		return nil, err
	}
	return brandSummaries(records), nil
}

func brandSummaries(records []normalize.Record) []domain.BrandSummary {
	out := catalog.EmptyBrands()
	for _, r := range records {
		brand := r.Text("brand")
		n, _ := r.Number("count")
		out = append(out, domain.BrandSummary{
			Brand:    brand,
			Slug:     slug.Generate(brand),
			Count:    int(n),
			ImageURL: normalize.AbsoluteURL(r.Text("image_url")),
		})
	}
	domain.SortBrands(out)
	return out
}

// Ping opens the database if needed and checks it answers.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	return s.classify(db.PingContext(ctx))
}

func (s *Store) Close() error { return s.handle.Close() }

const upsertProduct = `INSERT INTO products (
    source, reference, product_id, name, brand, category, color, price, price_cents,
    currency, availability, image_url, product_url, sizes, colors, styles, description, raw, scraped_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, reference) DO UPDATE SET
    product_id = excluded.product_id,
    name = excluded.name,
    brand = excluded.brand,
    category = excluded.category,
    color = excluded.color,
    price = excluded.price,
    price_cents = excluded.price_cents,
    currency = excluded.currency,
    availability = excluded.availability,
    image_url = excluded.image_url,
    product_url = excluded.product_url,
    sizes = excluded.sizes,
    colors = excluded.colors,
    styles = excluded.styles,
    description = excluded.description,
    raw = excluded.raw,
    scraped_at = excluded.scraped_at`

// Upsert implements catalog.Writer in a single transaction.
func (s *Store) Upsert(ctx context.Context, entries []catalog.Entry) (n int, err error) {
	db, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, "upsert_products", upsertProduct)
	defer func() { end(err) }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertProduct)
	if err != nil {
		return 0, s.classify(err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, upsertArgs(e)...); err != nil {
			return n, fmt.Errorf("upsert %s/%s: %w", e.Source, e.Reference, err)
		}
		n++
	}
	if err = tx.Commit(); err != nil {
		return 0, s.classify(err)
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func upsertArgs(e catalog.Entry) []any {
	var scraped any
	if !e.ScrapedAt.IsZero() {
		scraped = e.ScrapedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []any{
		e.Source, e.Reference, nullable(e.ProductID), e.Name, e.Brand,
		nullable(e.Category), nullable(e.Color), e.Price, e.PriceCents,
		nullable(e.Currency), nullable(e.Availability), nullable(e.ImageURL), nullable(e.ProductURL),
		nullable(e.Sizes), nullable(e.Colors), nullable(e.Styles), nullable(e.Description),
		nullable(e.Raw), scraped,
	}
}
