package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/clearancesync/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const origin = "https://www.potterybarn.com"

func TestResolvePrice(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  *float64
	}{
		{"sale and original", []string{"$120.00", "$89.99"}, types.Float64Ptr(89.99)},
		{"single", []string{"$45"}, types.Float64Ptr(45)},
		{"none", nil, nil},
		{"no digits", []string{"Call for price"}, nil},
		{"thousands", []string{"$1,299.00", "$2,450"}, types.Float64Ptr(1299)},
		{"range in one text", []string{"$300 - $250.50"}, types.Float64Ptr(250.50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePrice(tt.texts)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolvePrice(%q) mismatch (-want +got):\n%s", tt.texts, diff)
			}
		})
	}
}

func TestClassifyGrade(t *testing.T) {
	tests := []struct {
		name string
		raw  types.RawListing
		want *types.Grade
	}{
		{
			name: "contract beats open box",
			raw:  types.RawListing{ContractMarker: true, FlagText: "Open Box", FullText: "Open Box Grade A"},
			want: types.GradePtr(types.GradeContract),
		},
		{
			name: "flag open box",
			raw:  types.RawListing{FlagText: "OPEN BOX", FullText: "excellent"},
			want: types.GradePtr(types.GradeOpenBox),
		},
		{
			name: "flag hyphenated grade",
			raw:  types.RawListing{FlagText: "Grade-B"},
			want: types.GradePtr(types.GradeB),
		},
		{
			name: "flag beats full text",
			raw:  types.RawListing{FlagText: "grade c", FullText: "Grade A condition"},
			want: types.GradePtr(types.GradeC),
		},
		{
			name: "full text grade",
			raw:  types.RawListing{FullText: "Leather Chair Grade A $100"},
			want: types.GradePtr(types.GradeA),
		},
		{
			name: "full text synonym",
			raw:  types.RawListing{FullText: "Sofa in good condition"},
			want: types.GradePtr(types.GradeB),
		},
		{
			name: "synonym needs a word boundary",
			raw:  types.RawListing{FullText: "Goodwin Sideboard, fairly priced"},
			want: nil,
		},
		{
			name: "nothing",
			raw:  types.RawListing{FullText: "Side table"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ClassifyGrade(&tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("grade mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(origin, testLogger)

	raws := []types.RawListing{
		{
			Index:          0,
			Name:           "  Hudson   Chair ",
			Link:           "/products/hudson-chair/",
			Image:          "//assets.pbimgs.com/hudson.jpg",
			PriceTexts:     []string{"$120.00", "$89.99"},
			ContractMarker: true,
			FlagText:       "Open Box",
		},
		{Index: 1, Name: "No link"},
		{Index: 2, Name: "Duplicate", ProductURL: origin + "/products/hudson-chair/"},
		{Index: 3, Name: "", Link: "/products/nameless/"},
		{Index: 4, Name: "Rug", Link: "https://www.potterybarn.com/products/rug/", Image: "data:image/gif;base64,R0lGOD", FullText: "Rug Grade C"},
	}

	products, stats := n.Normalize(raws)

	want := []types.Product{
		{
			Name:       "Hudson Chair",
			Price:      types.Float64Ptr(89.99),
			Grade:      types.GradePtr(types.GradeContract),
			ImageURL:   types.StringPtr("https://assets.pbimgs.com/hudson.jpg"),
			ProductURL: origin + "/products/hudson-chair/",
		},
		{
			Name:       "Rug",
			Grade:      types.GradePtr(types.GradeC),
			ProductURL: origin + "/products/rug/",
		},
	}
	if diff := cmp.Diff(want, products); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}

	wantStats := NormalizeStats{
		Input:   5,
		Output:  2,
		Dropped: map[string]int{"link": 1, "dedup": 1, "name": 1},
	}
	if diff := cmp.Diff(wantStats, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

type failingStage struct{}

func (failingStage) Name() string { return "boom" }

func (failingStage) Process(*Candidate) (*Candidate, error) {
	return nil, errors.New("boom")
}

func TestPipelineStageError(t *testing.T) {
	p := New(testLogger)
	p.Use(&NameStage{})
	p.Use(failingStage{})

	out, stage, err := p.Process(&Candidate{Raw: types.RawListing{Index: 7, Name: "x"}})
	if out != nil {
		t.Error("expected nil candidate on error")
	}
	if stage != "boom" {
		t.Errorf("expected failing stage name, got %q", stage)
	}
	var extErr *types.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %T", err)
	}
	if extErr.Index != 7 || extErr.Field != "boom" {
		t.Errorf("unexpected error fields: %+v", extErr)
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 stages, got %d", p.Len())
	}
}
