package clearancesync

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewMigrateAndList(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, WithDatabase("sqlite", filepath.Join(t.TempDir(), "products.db")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	products, err := s.Products(ctx, 0)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("len(products) = %d, want 0", len(products))
	}
}

func TestNewCreatesOutputDirs(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "output")
	s, err := New(ctx,
		WithDatabase("sqlite", filepath.Join(out, "products.db")),
		WithSnapshotDir(filepath.Join(out, "snapshots")),
	)
	if err != nil {
		t.Fatalf("New on a fresh directory: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		opts []Option
	}{
		{"missing dsn", []Option{WithDatabase("sqlite", "")}},
		{"bad url", []Option{WithURL("ftp://example.com"), WithDatabase("sqlite", ":memory:")}},
		{"bad driver", []Option{WithDatabase("mysql", "x")}},
		{"zero stable rounds", []Option{WithStableRounds(0), WithDatabase("sqlite", ":memory:")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, err := New(ctx, tt.opts...); err == nil {
				s.Close()
				t.Fatal("expected error")
			}
		})
	}
}
