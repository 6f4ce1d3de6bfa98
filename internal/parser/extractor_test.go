package parser

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/clearancesync/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	testOrigin   = "https://www.potterybarn.com"
	testSelector = `[data-component="Shop-ProductCell"], .grid-item`
)

const gridHTML = `<!DOCTYPE html>
<html><body>
<div class="grid">
  <div class="grid-item">
    <div data-component="Shop-ProductCell" aria-product="hudson-leather-chair" aria-labelledby="name-1">
      <img data-test-id="product-image" src="//assets.pbimgs.com/chair.jpg">
      <span id="name-1">Hudson   Leather
        Chair</span>
      <div class="flag-text">Open Box</div>
      <span class="contractgrade">Contract Grade</span>
      <div class="product-price">
        <span data-test-id="amount">$120.00</span>
        <span data-test-id="amount">$89.99</span>
      </div>
    </div>
  </div>

  <div class="grid-item">
    <div class="product-name"><a href="https://www.potterybarn.com/products/sofa/"><span>Sofa</span></a></div>
    <img class="product-image" data-src="/images/sofa.jpg">
    <div class="product-price"><span class="amount">$1,299</span></div>
  </div>

  <div class="grid-item">
    <h3>Lamp without a link</h3>
  </div>

  <div class="grid-item">
    <div class="product-name"><a href="https://www.potterybarn.com/products/sofa/"><span>Sofa (again)</span></a></div>
  </div>

  <div class="grid-item">
    <a href="//www.potterybarn.com/product/rug/" aria-label="Jute Rug"></a>
    <h3>Chunky Jute Rug</h3>
    <span>Grade B</span>
  </div>

  <div class="grid-item">
    <a href="javascript:void(0)"><span class="product-name"><span>Ghost</span></span></a>
  </div>
</div>
</body></html>`

func TestExtractListings(t *testing.T) {
	e := NewExtractor(testSelector, testOrigin, DefaultRules(), testLogger)

	out, err := e.Extract(gridHTML)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// The nested ShopCell is matched as well as its grid-item wrapper.
	if out.Elements != 7 {
		t.Errorf("expected 7 matched elements, got %d", out.Elements)
	}
	if out.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", out.Duplicates)
	}
	if out.Incomplete != 2 {
		t.Errorf("expected 2 incomplete elements, got %d", out.Incomplete)
	}
	if len(out.Listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(out.Listings))
	}

	chair := out.Listings[0]
	if chair.ProductURL != "https://www.potterybarn.com/products/hudson-leather-chair/" {
		t.Errorf("unexpected chair URL %q", chair.ProductURL)
	}
	if chair.Name != "Hudson Leather Chair" {
		t.Errorf("unexpected chair name %q", chair.Name)
	}
	if chair.Image != "//assets.pbimgs.com/chair.jpg" {
		t.Errorf("unexpected chair image %q", chair.Image)
	}
	if diff := cmp.Diff([]string{"$120.00", "$89.99"}, chair.PriceTexts); diff != "" {
		t.Errorf("price texts mismatch (-want +got):\n%s", diff)
	}
	if !chair.ContractMarker {
		t.Error("expected contract marker")
	}
	if chair.FlagText != "Open Box" {
		t.Errorf("unexpected flag text %q", chair.FlagText)
	}

	sofa := out.Listings[1]
	if sofa.Name != "Sofa" {
		t.Errorf("first occurrence should win, got name %q", sofa.Name)
	}
	if sofa.Image != "/images/sofa.jpg" {
		t.Errorf("expected data-src fallback, got %q", sofa.Image)
	}
	if diff := cmp.Diff([]string{"$1,299"}, sofa.PriceTexts); diff != "" {
		t.Errorf("sofa price mismatch (-want +got):\n%s", diff)
	}
	if sofa.ContractMarker {
		t.Error("sofa has no contract marker")
	}

	rug := out.Listings[2]
	if rug.ProductURL != "https://www.potterybarn.com/product/rug/" {
		t.Errorf("unexpected rug URL %q", rug.ProductURL)
	}
	if rug.Name != "Chunky Jute Rug" {
		t.Errorf("expected heading fallback, got %q", rug.Name)
	}
	if len(rug.PriceTexts) != 0 {
		t.Errorf("expected no price texts, got %v", rug.PriceTexts)
	}
	if rug.FullText != "Chunky Jute Rug Grade B" {
		t.Errorf("unexpected full text %q", rug.FullText)
	}
}

func TestExtractNoProducts(t *testing.T) {
	e := NewExtractor(testSelector, testOrigin, DefaultRules(), testLogger)

	out, err := e.Extract(`<html><body><p>Nothing on sale</p></body></html>`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Elements != 0 || len(out.Listings) != 0 {
		t.Errorf("expected empty extraction, got %+v", out)
	}
}

func TestExtractConfiguredXPathRule(t *testing.T) {
	rules := RulesFromConfig(map[string][]config.ParseRule{
		"name": {{Type: KindXPath, Selector: ".//h3"}},
	})
	e := NewExtractor(".grid-item", testOrigin, rules, testLogger)

	out, err := e.Extract(`<div class="grid-item">
		<div class="product-name"><a href="/products/desk/"><span>Ignored</span></a></div>
		<h3>Writing Desk</h3>
	</div>`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(out.Listings))
	}
	if out.Listings[0].Name != "Writing Desk" {
		t.Errorf("expected configured rule to win, got %q", out.Listings[0].Name)
	}
	if out.Listings[0].ProductURL != testOrigin+"/products/desk/" {
		t.Errorf("default link rules should still apply, got %q", out.Listings[0].ProductURL)
	}
}

func TestExtractElementFailureIsIsolated(t *testing.T) {
	rules := DefaultRules()
	rules.Flag = []Rule{{Kind: KindXPath, Selector: "[[broken"}}
	e := NewExtractor(".grid-item", testOrigin, rules, testLogger)

	out, err := e.Extract(`<div class="grid-item"><a href="/product/a/"><h3>A</h3></a></div>
		<div class="grid-item"><a href="/product/b/"><h3>B</h3></a></div>`)
	if err != nil {
		t.Fatalf("a broken rule must not fail the pass: %v", err)
	}
	if out.Failed != 2 {
		t.Errorf("expected 2 failed elements, got %d", out.Failed)
	}
	if len(out.Listings) != 0 {
		t.Errorf("expected no listings, got %d", len(out.Listings))
	}
}

func TestExtractNameFromProductSlug(t *testing.T) {
	e := NewExtractor(testSelector, testOrigin, DefaultRules(), testLogger)

	out, err := e.Extract(`<div data-component="Shop-ProductCell" aria-product="hudson-leather-chair">
		<span data-test-id="amount">$310</span>
	</div>`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Incomplete != 0 {
		t.Errorf("expected no incomplete elements, got %d", out.Incomplete)
	}
	if len(out.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(out.Listings))
	}
	if got := out.Listings[0].Name; got != "Hudson Leather Chair" {
		t.Errorf("expected slug-derived name, got %q", got)
	}
	if got := out.Listings[0].ProductURL; got != testOrigin+"/products/hudson-leather-chair/" {
		t.Errorf("unexpected URL %q", got)
	}
}

func TestExtractConfiguredFormatAndTransform(t *testing.T) {
	rules := RulesFromConfig(map[string][]config.ParseRule{
		config.FieldLink: {{Attribute: "data-sku", Format: "/products/%s/"}},
		config.FieldName: {{Attribute: "data-sku", Transform: config.TransformSlugTitle}},
	})
	e := NewExtractor(".tile", testOrigin, rules, testLogger)

	out, err := e.Extract(`<div class="tile" data-sku="jute_area-rug"></div>`)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(out.Listings))
	}
	l := out.Listings[0]
	if l.ProductURL != testOrigin+"/products/jute_area-rug/" {
		t.Errorf("unexpected URL %q", l.ProductURL)
	}
	if l.Name != "Jute Area Rug" {
		t.Errorf("unexpected name %q", l.Name)
	}
}

func TestSlugTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hudson-leather-chair", "Hudson Leather Chair"},
		{"rug", "Rug"},
		{"--double--dash", "Double Dash"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SlugTitle(tt.in); got != tt.want {
			t.Errorf("SlugTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
