package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/clearancesync/internal/types"
)

func seedExport(t *testing.T) *SQLStore {
	t.Helper()
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	upsertOne(t, s, types.Product{
		Name:       "Hudson Chair",
		Price:      types.Float64Ptr(89.99),
		Grade:      types.GradePtr(types.GradeOpenBox),
		ProductURL: "https://www.potterybarn.com/products/hudson-chair/",
	}, at)
	upsertOne(t, s, types.Product{Name: "Rug, Jute", ProductURL: "https://www.potterybarn.com/products/rug/"}, at.Add(time.Minute))
	return s
}

func TestExportCSV(t *testing.T) {
	s := seedExport(t)
	var buf bytes.Buffer

	n, err := Export(context.Background(), s, &buf, FormatCSV, 0)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "id,name,price,grade,image_url,product_url,created_at,updated_at" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Rug, Jute"`) {
		t.Errorf("newest row first with quoted name, got %q", lines[1])
	}
	if !strings.Contains(lines[2], ",89.99,Open Box,,") {
		t.Errorf("unexpected chair row %q", lines[2])
	}
}

func TestExportJSONL(t *testing.T) {
	s := seedExport(t)
	var buf bytes.Buffer

	if _, err := Export(context.Background(), s, &buf, FormatJSONL, 1); err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line with limit 1, got %d", len(lines))
	}
	var p types.PersistedProduct
	if err := json.Unmarshal([]byte(lines[0]), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "Rug, Jute" || p.Price != nil {
		t.Errorf("unexpected product %+v", p)
	}
}

func TestExportJSONEmpty(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer

	if _, err := Export(context.Background(), s, &buf, FormatJSON, 0); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %q", buf.String())
	}
}

func TestExportUnknownFormat(t *testing.T) {
	s := newTestStore(t)
	if _, err := Export(context.Background(), s, &bytes.Buffer{}, "xml", 0); err == nil {
		t.Error("expected error for unknown format")
	}
}
