// Package storage persists products in a relational table keyed on the
// product URL.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("product not found")

// Store is the transactional product store.
type Store interface {
	// Begin opens a transaction. Every write of a batch goes through one Tx.
	Begin(ctx context.Context) (Tx, error)

	// Migrate creates the products table and its indexes if missing.
	Migrate(ctx context.Context) error

	// Get returns the row for productURL, or ErrNotFound.
	Get(ctx context.Context, productURL string) (*types.PersistedProduct, error)

	// List returns up to limit rows, most recently updated first. A limit of
	// zero or less returns every row.
	List(ctx context.Context, limit int) ([]types.PersistedProduct, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)
}

// Tx is a storage transaction.
type Tx interface {
	// Upsert inserts p, or overwrites the mutable fields of the row with the
	// same product URL. now becomes updated_at, and also created_at for a
	// new row, unless the database stamps rows with its own clock. Either way
	// updated_at is the same for every row of one transaction. inserted
	// reports whether the row was created by this call.
	Upsert(ctx context.Context, p types.Product, now time.Time) (inserted bool, err error)

	Commit() error
	Rollback() error
}
