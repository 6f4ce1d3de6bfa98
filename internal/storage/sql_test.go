package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/IshaanNene/clearancesync/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "products.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	s, err := NewSQLStore(conn, "sqlite", testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func upsertOne(t *testing.T, s *SQLStore, p types.Product, now time.Time) bool {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	inserted, err := tx.Upsert(ctx, p, now)
	if err != nil {
		tx.Rollback()
		t.Fatalf("upsert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return inserted
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(6 * time.Hour)

	p := types.Product{
		Name:       "Hudson Chair",
		Price:      types.Float64Ptr(89.99),
		Grade:      types.GradePtr(types.GradeOpenBox),
		ImageURL:   types.StringPtr("https://assets.pbimgs.com/hudson.jpg"),
		ProductURL: "https://www.potterybarn.com/products/hudson-chair/",
	}

	if !upsertOne(t, s, p, t0) {
		t.Error("first upsert should insert")
	}

	p.Price = types.Float64Ptr(79.99)
	p.Grade = nil
	if upsertOne(t, s, p, t1) {
		t.Error("second upsert should update")
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}

	got, err := s.Get(ctx, p.ProductURL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created_at changed: %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(t1) {
		t.Errorf("expected updated_at %v, got %v", t1, got.UpdatedAt)
	}
	if got.Price == nil || *got.Price != 79.99 {
		t.Errorf("price not overwritten: %v", got.Price)
	}
	if got.Grade != nil {
		t.Errorf("grade should be cleared, got %v", *got.Grade)
	}
	if got.ImageURL == nil || *got.ImageURL != "https://assets.pbimgs.com/hudson.jpg" {
		t.Errorf("unexpected image url %v", got.ImageURL)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Upsert(ctx, types.Product{Name: "A", ProductURL: "https://x.test/a"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected empty table after rollback, got %d rows", n)
	}
}

func TestNegativePriceRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	_, err = tx.Upsert(ctx, types.Product{Name: "Bad", Price: types.Float64Ptr(-1), ProductURL: "https://x.test/bad"}, time.Now())
	if err == nil {
		t.Fatal("expected check constraint violation")
	}
}

func TestGetAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "https://x.test/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c"} {
		upsertOne(t, s, types.Product{Name: name, ProductURL: "https://x.test/" + name}, base.Add(time.Duration(i)*time.Minute))
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	if all[0].Name != "c" {
		t.Errorf("expected newest first, got %q", all[0].Name)
	}

	two, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(two) != 2 {
		t.Errorf("expected limit of 2, got %d", len(two))
	}
}

func TestDialectFor(t *testing.T) {
	for _, d := range []string{"postgres", "pgx", "sqlite"} {
		if _, err := DialectFor(d); err != nil {
			t.Errorf("%s: %v", d, err)
		}
	}
	if _, err := DialectFor("mysql"); !errors.Is(err, types.ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestUpsertBindsEveryPlaceholder(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	p := types.Product{Name: "Chair", ProductURL: "https://shop.example.com/products/chair/"}

	for _, tt := range []struct {
		dialect Dialect
		args    int
	}{
		{DialectPostgres, 5},
		{DialectSQLite, 7},
	} {
		got := upsertArgs(tt.dialect, p, now)
		if len(got) != tt.args {
			t.Errorf("dialect %d: expected %d args, got %d", tt.dialect, tt.args, len(got))
		}
		if n := len(placeholderRe.FindAllString(upsertSQL[tt.dialect], -1)); n != len(got) {
			t.Errorf("dialect %d: statement has %d placeholders for %d args", tt.dialect, n, len(got))
		}
	}
}

func TestPostgresUpsertUsesServerClock(t *testing.T) {
	q := upsertSQL[DialectPostgres]
	if !strings.Contains(q, "NOW(), NOW()") {
		t.Error("postgres insert should stamp created_at and updated_at with NOW()")
	}
	if !strings.Contains(q, "GREATEST(EXCLUDED.updated_at, products.updated_at") {
		t.Error("postgres update must not move updated_at backwards")
	}
}
