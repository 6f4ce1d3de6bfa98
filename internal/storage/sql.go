package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// Dialect selects DDL and placeholder style.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "sqlite":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("%w: %q", types.ErrUnknownDriver, driver)
}

var schema = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS products (
			id          SERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			price       NUMERIC(12, 2) CHECK (price IS NULL OR price >= 0),
			grade       TEXT,
			image_url   TEXT,
			product_url TEXT NOT NULL UNIQUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products (updated_at)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS products (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			price       REAL CHECK (price IS NULL OR price >= 0),
			grade       TEXT,
			image_url   TEXT,
			product_url TEXT NOT NULL UNIQUE,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products (updated_at)`,
	},
}

// upsertSQL is keyed on product_url. Postgres stamps rows with the server's
// transaction time and never lets updated_at move backwards, so runners with
// skewed clocks still advance it. SQLite takes the timestamp as $6/$7 since
// its CURRENT_TIMESTAMP only has second resolution.
var upsertSQL = map[Dialect]string{
	DialectPostgres: `
INSERT INTO products (name, price, grade, image_url, product_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (product_url) DO UPDATE SET
	name       = EXCLUDED.name,
	price      = EXCLUDED.price,
	grade      = EXCLUDED.grade,
	image_url  = EXCLUDED.image_url,
	updated_at = GREATEST(EXCLUDED.updated_at, products.updated_at + INTERVAL '1 microsecond')
RETURNING id, created_at = updated_at`,
	DialectSQLite: `
INSERT INTO products (name, price, grade, image_url, product_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (product_url) DO UPDATE SET
	name       = EXCLUDED.name,
	price      = EXCLUDED.price,
	grade      = EXCLUDED.grade,
	image_url  = EXCLUDED.image_url,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at = updated_at`,
}

const selectColumns = `SELECT id, name, price, grade, image_url, product_url, created_at, updated_at FROM products`

var placeholderRe = regexp.MustCompile(`\$\d+`)

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewSQLStore wraps an open handle. The handle stays owned by the caller.
func NewSQLStore(db *sql.DB, driver string, logger *slog.Logger) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "sql_store"),
	}, nil
}

// rebind rewrites $N placeholders for drivers that only take '?'. Every
// query here uses its placeholders in ascending order.
func (s *SQLStore) rebind(query string) string {
	if s.dialect == DialectSQLite {
		return placeholderRe.ReplaceAllString(query, "?")
	}
	return query
}

// Migrate creates the schema.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &types.PersistenceError{Op: "migrate", Err: err}
		}
	}
	s.logger.Info("schema ready")
	return nil
}

// Begin opens a transaction.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, dialect: s.dialect, upsert: s.rebind(upsertSQL[s.dialect])}, nil
}

// Get returns the row for productURL.
func (s *SQLStore) Get(ctx context.Context, productURL string) (*types.PersistedProduct, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE product_url = $1`), productURL)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", productURL, err)
	}
	return p, nil
}

// List returns rows ordered by updated_at, newest first.
func (s *SQLStore) List(ctx context.Context, limit int) ([]types.PersistedProduct, error) {
	query := selectColumns + ` ORDER BY updated_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []types.PersistedProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Count returns the number of rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
	upsert  string
}

func (t *sqlTx) Upsert(ctx context.Context, p types.Product, now time.Time) (bool, error) {
	var (
		id       int64
		inserted bool
	)
	err := t.tx.QueryRowContext(ctx, t.upsert, upsertArgs(t.dialect, p, now)...).Scan(&id, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// upsertArgs binds p for the dialect's upsert statement. now is only bound
// where the database does not stamp the row itself.
func upsertArgs(d Dialect, p types.Product, now time.Time) []any {
	args := []any{
		p.Name,
		nullFloat(p.Price),
		nullGrade(p.Grade),
		nullString(p.ImageURL),
		p.ProductURL,
	}
	if d == DialectSQLite {
		args = append(args, now, now)
	}
	return args
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*types.PersistedProduct, error) {
	var (
		p     types.PersistedProduct
		price sql.NullFloat64
		grade sql.NullString
		image sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &grade, &image, &p.ProductURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if price.Valid {
		p.Price = types.Float64Ptr(price.Float64)
	}
	if grade.Valid {
		p.Grade = types.GradePtr(types.Grade(grade.String))
	}
	if image.Valid {
		p.ImageURL = types.StringPtr(image.String)
	}
	return &p, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullGrade(g *types.Grade) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*g), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
