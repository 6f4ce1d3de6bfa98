package types

import (
	"time"
)

// Grade is the condition grade shown on a clearance listing.
type Grade string

const (
	GradeA        Grade = "A"
	GradeB        Grade = "B"
	GradeC        Grade = "C"
	GradeOpenBox  Grade = "Open Box"
	GradeContract Grade = "Contract Grade"
)

// Valid reports whether g is one of the known grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeOpenBox, GradeContract:
		return true
	}
	return false
}

// RawListing is the bag of candidate values pulled from one product element.
// It only lives for the duration of a pass.
type RawListing struct {
	// Index is the element's position in the matched element list.
	Index int

	Name       string
	PriceTexts []string

	// ContractMarker is set when the element carries the structural
	// contract-grade marker.
	ContractMarker bool

	// FlagText is the promotional flag text, if any.
	FlagText string

	// FullText is the element's whitespace-collapsed text content.
	FullText string

	// Image and Link are the references as they appear in the DOM.
	Image string
	Link  string

	// ProductURL is Link resolved against the site origin.
	ProductURL string
}

// Product is a listing after price, grade and URL resolution.
type Product struct {
	Name       string   `json:"name"`
	Price      *float64 `json:"price"`
	Grade      *Grade   `json:"grade"`
	ImageURL   *string  `json:"image_url"`
	ProductURL string   `json:"product_url"`
}

// PersistedProduct is a product row as stored.
type PersistedProduct struct {
	Product
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncResult summarizes one persisted batch.
type SyncResult struct {
	Saved   int `json:"saved"   bson:"saved"`
	Updated int `json:"updated" bson:"updated"`
	Total   int `json:"total"   bson:"total"`
}

// GradePtr returns a pointer to g.
func GradePtr(g Grade) *Grade { return &g }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
