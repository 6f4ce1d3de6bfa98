package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

var csvHeader = []string{"id", "name", "price", "grade", "image_url", "product_url", "created_at", "updated_at"}

// Export writes up to limit stored products to w and returns how many were
// written.
func Export(ctx context.Context, store Store, w io.Writer, format string, limit int) (int, error) {
	products, err := store.List(ctx, limit)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatJSON:
		if products == nil {
			products = []types.PersistedProduct{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(products); err != nil {
			return 0, fmt.Errorf("encode JSON: %w", err)
		}

	case FormatJSONL:
		enc := json.NewEncoder(w)
		for i := range products {
			if err := enc.Encode(&products[i]); err != nil {
				return i, fmt.Errorf("encode JSONL: %w", err)
			}
		}

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return 0, fmt.Errorf("write CSV header: %w", err)
		}
		for _, p := range products {
			if err := cw.Write(csvRow(p)); err != nil {
				return 0, fmt.Errorf("write CSV row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return 0, err
		}

	default:
		return 0, fmt.Errorf("unsupported export format: %s", format)
	}

	return len(products), nil
}

func csvRow(p types.PersistedProduct) []string {
	row := []string{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		"",
		"",
		"",
		p.ProductURL,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.Price != nil {
		row[2] = strconv.FormatFloat(*p.Price, 'f', 2, 64)
	}
	if p.Grade != nil {
		row[3] = string(*p.Grade)
	}
	if p.ImageURL != nil {
		row[4] = *p.ImageURL
	}
	return row
}
