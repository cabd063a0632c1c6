// Package postgres is the PostgreSQL catalog backend.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

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

// Querier is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it as well.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

const (
	table      = "products"
	selectList = "id, source, reference, product_id, name, brand, category, color, price, " +
		"availability, image_url, product_url, sizes, styles, description"
)

// Store implements catalog.Gateway and catalog.Writer on PostgreSQL.
type Store struct {
	db         Querier
	address    string
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// New returns a store over db. address is reported by Address and should
// not carry credentials.
func New(db Querier, address string, logger *slog.Logger) *Store {
	return &Store{
		db:         db,
		address:    address,
		normalizer: normalize.New(catalog.BackendPostgres, logger),
		logger:     logger,
	}
}

func (s *Store) Name() string    { return catalog.BackendPostgres }
func (s *Store) Address() string { return s.address }

func (s *Store) classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || database.IsConnectionError(err) {
		return catalog.Unavailable(s.Name(), err)
	}
	return fmt.Errorf("postgres catalog: %w", err)
}

// Search runs the page query and its COUNT companion.
func (s *Store) Search(ctx context.Context, q query.Query) (*domain.SearchResult, error) {
	st, err := query.Postgres.Render(q.Listable(), table, selectList, query.ProductColumns)
	if err != nil {
		return nil, err
	}

	var total int
	tctx, end := database.TraceQuery(ctx, database.SystemPostgres, "count_products", st.CountQuery)
	err = s.db.QueryRow(tctx, st.CountQuery, st.CountArgs...).Scan(&total)
	end(err)
	if err != nil {
		return nil, s.classify(fmt.Errorf("count products: %w", err))
	}

	records, err := s.list(ctx, "search_products", st.Query, st.Args...)
	if err != nil {
		return nil, err
	}
	return domain.NewSearchResult(s.normalizer.Products(ctx, records), total, q.Page), nil
}

func (s *Store) list(ctx context.Context, op, stmt string, args ...any) (_ []normalize.Record, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, op, stmt)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, s.classify(fmt.Errorf("%s: %w", op, err))
	}
	defer rows.Close()

	var records []normalize.Record
	for rows.Next() {
		rec, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(fmt.Errorf("iterate product rows: %w", err))
	}
	return records, nil
}

// scanProduct reads one selectList row into a record. NULL columns are
// left out.
func scanProduct(row pgx.Row) (normalize.Record, error) {
	var (
		id                                                 int64
		source                                             string
		reference, productID, name, brand, category, color *string
		availability, imageURL, productURL, sizes, styles  *string
		description                                        *string
		price                                              *float64
	)
	if err := row.Scan(
		&id, &source, &reference, &productID, &name, &brand, &category, &color, &price,
		&availability, &imageURL, &productURL, &sizes, &styles, &description,
	); err != nil {
		return nil, err
	}

	rec := normalize.Record{"id": id, "source": source}
	for k, v := range map[string]*string{
		"reference": reference, "product_id": productID, "name": name, "brand": brand,
		"category": category, "color": color, "availability": availability,
		"image_url": imageURL, "product_url": productURL, "sizes": sizes,
		"styles": styles, "description": description,
	} {
		if v != nil {
			rec[k] = *v
		}
	}
	if price != nil {
		rec["price"] = *price
	}
	return rec, nil
}

const productByID = `SELECT ` + selectList + ` FROM products
WHERE product_id = $1
   OR (COALESCE(product_id, '') = '' AND reference = $1)
   OR (COALESCE(product_id, '') = '' AND COALESCE(reference, '') = '' AND id::text = $1)
ORDER BY created_at DESC, id DESC
LIMIT 1`

// Product looks a product up by the id the normalizer assigns.
func (s *Store) Product(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "get_product", productByID)
	defer func() { end(err) }()

	rec, err := scanProduct(s.db.QueryRow(ctx, productByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ProductNotFound(id)
	}
	if err != nil {
		return nil, s.classify(fmt.Errorf("get product: %w", err))
	}
	p, ok := s.normalizer.Product(ctx, rec)
	if !ok {
		return nil, catalog.ProductNotFound(id)
	}
	return &p, nil
}

const brandListing = `SELECT brand, COUNT(*) AS count,
       (ARRAY_AGG(image_url ORDER BY id) FILTER (WHERE COALESCE(image_url, '') <> ''))[1] AS image_url
FROM products
WHERE TRIM(COALESCE(brand, '')) <> '' AND TRIM(COALESCE(name, '')) <> ''
GROUP BY brand`

// Brands lists brands with product counts and a representative image.
func (s *Store) Brands(ctx context.Context) (_ []domain.BrandSummary, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "list_brands", brandListing)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, brandListing)
	if err != nil {
		return nil, s.classify(fmt.Errorf("list brands: %w", err))
	}
	defer rows.Close()

	out := catalog.EmptyBrands()
	for rows.Next() {
		var (
			brand string
			count int
			image *string
		)
		if err := rows.Scan(&brand, &count, &image); err != nil {
			return nil, fmt.Errorf("scan brand row: %w", err)
		}
		b := domain.BrandSummary{Brand: brand, Slug: slug.Generate(brand), Count: count}
		if image != nil {
			b.ImageURL = normalize.AbsoluteURL(*image)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(fmt.Errorf("iterate brand rows: %w", err))
	}
	domain.SortBrands(out)
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return catalog.Unavailable(s.Name(), err)
	}
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

const upsertProduct = `
	INSERT INTO products (source, reference, product_id, name, brand, category, color, price, price_cents,
		currency, availability, image_url, product_url, sizes, colors, styles, description, raw, scraped_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, COALESCE($19, NOW()))
	ON CONFLICT (source, reference) DO UPDATE SET
		product_id = EXCLUDED.product_id,
		name = EXCLUDED.name,
		brand = EXCLUDED.brand,
		category = EXCLUDED.category,
		color = EXCLUDED.color,
		price = EXCLUDED.price,
		price_cents = EXCLUDED.price_cents,
		currency = EXCLUDED.currency,
		availability = EXCLUDED.availability,
		image_url = EXCLUDED.image_url,
		product_url = EXCLUDED.product_url,
		sizes = EXCLUDED.sizes,
		colors = EXCLUDED.colors,
		styles = EXCLUDED.styles,
		description = EXCLUDED.description,
		raw = EXCLUDED.raw,
		scraped_at = EXCLUDED.scraped_at`

// Upsert writes entries in one transaction.
func (s *Store) Upsert(ctx context.Context, entries []catalog.Entry) (n int, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "upsert_products", upsertProduct)
	defer func() { end(err) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, s.classify(fmt.Errorf("begin upsert: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, e := range entries {
		args, err := upsertArgs(e)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, upsertProduct, args...); err != nil {
			return 0, fmt.Errorf("upsert %s/%s: %w", e.Source, e.Reference, err)
		}
		n++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, s.classify(fmt.Errorf("commit upsert: %w", err))
	}
	return n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func upsertArgs(e catalog.Entry) ([]any, error) {
	var raw []byte
	if e.Raw != "" {
		if !json.Valid([]byte(e.Raw)) {
			b, err := json.Marshal(e.Raw)
			if err != nil {
				return nil, fmt.Errorf("marshal raw payload: %w", err)
			}
			raw = b
		} else {
			raw = []byte(e.Raw)
		}
	}
	var scraped any
	if !e.ScrapedAt.IsZero() {
		scraped = e.ScrapedAt.UTC()
	}
	return []any{
		e.Source, e.Reference, nullable(e.ProductID), e.Name, e.Brand,
		nullable(e.Category), nullable(e.Color), e.Price, e.PriceCents,
		nullable(e.Currency), nullable(e.Availability), nullable(e.ImageURL), nullable(e.ProductURL),
		nullable(e.Sizes), nullable(e.Colors), nullable(e.Styles), nullable(e.Description),
		raw, scraped,
	}, nil
}
