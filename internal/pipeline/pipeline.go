package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// Candidate is a listing on its way to becoming a Product. Stages read Raw
// and fill in Product.
type Candidate struct {
	Raw     types.RawListing
	Product types.Product
}

// Stage processes a candidate and returns it, possibly modified.
// Return nil to drop the candidate.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Process transforms a candidate. Return nil to drop it.
	Process(c *Candidate) (*Candidate, error)
}

// Pipeline chains stages together.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates an empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use appends a stage to the chain.
func (p *Pipeline) Use(s Stage) {
	p.stages = append(p.stages, s)
	p.logger.Debug("stage added", "name", s.Name(), "position", len(p.stages))
}

// Process runs the candidate through every stage in order. The name of the
// stage that dropped the candidate is returned alongside a nil result.
func (p *Pipeline) Process(c *Candidate) (*Candidate, string, error) {
	current := c

	for _, s := range p.stages {
		result, err := s.Process(current)
		if err != nil {
			return nil, s.Name(), &types.ExtractionError{
				Index: c.Raw.Index,
				Field: s.Name(),
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("candidate dropped", "stage", s.Name(), "index", c.Raw.Index, "link", c.Raw.Link)
			return nil, s.Name(), nil
		}
		current = result
	}

	return current, "", nil
}

// Len returns the number of stages in the chain.
func (p *Pipeline) Len() int {
	return len(p.stages)
}
