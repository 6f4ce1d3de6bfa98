package pipeline

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/IshaanNene/clearancesync/internal/types"
)

var priceTokenRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ResolvePrice collects every numeric token in texts and returns the lowest,
// or nil when there is none. Thousand separators are ignored.
func ResolvePrice(texts []string) *float64 {
	var best *float64
	for _, text := range texts {
		for _, tok := range priceTokenRe.FindAllString(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
			if err != nil {
				continue
			}
			if best == nil || v < *best {
				best = types.Float64Ptr(v)
			}
		}
	}
	return best
}

// --- Stages ---

// LinkStage resolves the product URL and drops candidates without one.
type LinkStage struct {
	Origin string
}

// Name implements Stage.
func (s *LinkStage) Name() string { return "link" }

// Process prefers the extractor-resolved URL over the raw link reference.
func (s *LinkStage) Process(c *Candidate) (*Candidate, error) {
	ref := c.Raw.ProductURL
	if ref == "" {
		ref = c.Raw.Link
	}
	abs, ok := types.AbsoluteURL(s.Origin, ref)
	if !ok {
		return nil, nil
	}
	c.Product.ProductURL = abs
	return c, nil
}

// NameStage collapses whitespace in the name and drops nameless candidates.
type NameStage struct{}

// Name implements Stage.
func (s *NameStage) Name() string { return "name" }

// Process drops the candidate when nothing but whitespace remains.
func (s *NameStage) Process(c *Candidate) (*Candidate, error) {
	name := strings.Join(strings.Fields(c.Raw.Name), " ")
	if name == "" {
		return nil, nil
	}
	c.Product.Name = name
	return c, nil
}

// PriceStage sets the price from the collected price texts.
type PriceStage struct{}

// Name implements Stage.
func (s *PriceStage) Name() string { return "price" }

// Process never drops; a listing without a price keeps a nil Price.
func (s *PriceStage) Process(c *Candidate) (*Candidate, error) {
	c.Product.Price = ResolvePrice(c.Raw.PriceTexts)
	return c, nil
}

// ImageStage resolves the image reference; unresolvable images become nil.
type ImageStage struct {
	Origin string
}

// Name implements Stage.
func (s *ImageStage) Name() string { return "image" }

// Process never drops the candidate.
func (s *ImageStage) Process(c *Candidate) (*Candidate, error) {
	if abs, ok := types.AbsoluteURL(s.Origin, c.Raw.Image); ok {
		c.Product.ImageURL = types.StringPtr(abs)
	} else {
		c.Product.ImageURL = nil
	}
	return c, nil
}

// GradeStage classifies the condition grade.
type GradeStage struct {
	logger *slog.Logger
}

// Name implements Stage.
func (s *GradeStage) Name() string { return "grade" }

// Process sets Grade to nil when no rule matches.
func (s *GradeStage) Process(c *Candidate) (*Candidate, error) {
	grade, rule := ClassifyGrade(&c.Raw)
	c.Product.Grade = grade
	if s.logger != nil && grade != nil {
		s.logger.Debug("grade classified", "url", c.Product.ProductURL, "grade", *grade, "rule", rule)
	}
	return c, nil
}

// DedupStage drops candidates whose product URL was already seen.
type DedupStage struct {
	seen map[string]struct{}
}

// NewDedupStage creates a DedupStage with an empty seen-set. Use one per
// batch.
func NewDedupStage() *DedupStage {
	return &DedupStage{seen: make(map[string]struct{})}
}

// Name implements Stage.
func (s *DedupStage) Name() string { return "dedup" }

// Process keeps the first candidate for each URL and drops the rest.
func (s *DedupStage) Process(c *Candidate) (*Candidate, error) {
	if _, exists := s.seen[c.Product.ProductURL]; exists {
		return nil, nil
	}
	s.seen[c.Product.ProductURL] = struct{}{}
	return c, nil
}

// --- Normalizer ---

// NormalizeStats counts what happened to a batch of raw listings.
type NormalizeStats struct {
	Input   int            `json:"input"   bson:"input"`
	Output  int            `json:"output"  bson:"output"`
	Dropped map[string]int `json:"dropped" bson:"dropped"`
	Errors  int            `json:"errors"  bson:"errors"`
}

// Normalizer turns raw listings into products.
type Normalizer struct {
	origin string
	logger *slog.Logger
}

// NewNormalizer creates a normalizer resolving relative references against
// origin.
func NewNormalizer(origin string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		origin: origin,
		logger: logger.With("component", "normalizer"),
	}
}

// pipeline builds a fresh stage chain; dedup state is per batch.
func (n *Normalizer) pipeline() *Pipeline {
	p := New(n.logger)
	p.Use(&LinkStage{Origin: n.origin})
	p.Use(&NameStage{})
	p.Use(NewDedupStage())
	p.Use(&PriceStage{})
	p.Use(&ImageStage{Origin: n.origin})
	p.Use(&GradeStage{logger: n.logger})
	return p
}

// Normalize runs every raw listing through the stage chain. Order is
// preserved; the first occurrence of a URL wins.
func (n *Normalizer) Normalize(raws []types.RawListing) ([]types.Product, NormalizeStats) {
	stats := NormalizeStats{Input: len(raws), Dropped: make(map[string]int)}
	p := n.pipeline()

	products := make([]types.Product, 0, len(raws))
	for _, raw := range raws {
		out, stage, err := p.Process(&Candidate{Raw: raw})
		if err != nil {
			stats.Errors++
			n.logger.Warn("dropping listing", "error", err)
			continue
		}
		if out == nil {
			stats.Dropped[stage]++
			continue
		}
		products = append(products, out.Product)
	}
	stats.Output = len(products)

	n.logger.Info("normalized listings",
		"input", stats.Input,
		"output", stats.Output,
		"dropped", stats.Dropped,
	)
	return products, stats
}
