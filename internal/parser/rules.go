package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/IshaanNene/clearancesync/internal/config"
)

// Rule kinds.
const (
	KindCSS   = "css"
	KindXPath = "xpath"
)

// Rule is one selector fallback for a field.
type Rule struct {
	// Kind is "css" (default) or "xpath". XPath expressions are evaluated
	// relative to the product element.
	Kind string

	// Selector picks nodes under the product element. Empty means the
	// element itself.
	Selector string

	// Attr names the attribute to read. Empty reads the text content.
	Attr string

	// Transform rewrites the raw value before Format is applied.
	Transform func(string) string

	// Format, when set, is applied to the value with fmt.Sprintf.
	Format string

	// Ref marks the value as an element id; the referenced element's text
	// is used instead.
	Ref bool
}

// FieldRules holds the ordered fallbacks for every field of a listing.
type FieldRules struct {
	Link     []Rule
	Name     []Rule
	Image    []Rule
	Price    []Rule
	Contract []Rule
	Flag     []Rule
}

const shopCell = `[data-component="Shop-ProductCell"]`

// DefaultRules returns the fallbacks for the clearance grid layout, legacy
// markup included.
func DefaultRules() FieldRules {
	return FieldRules{
		Link: []Rule{
			{Attr: "aria-product", Format: "/products/%s/"},
			{Selector: shopCell, Attr: "aria-product", Format: "/products/%s/"},
			{Selector: `[data-test-id="product-image-link"]`, Attr: "href"},
			{Selector: `.product-image-link`, Attr: "href"},
			{Selector: `.product-name a`, Attr: "href"},
			{Selector: `a[href*="/product/"]`, Attr: "href"},
		},
		Name: []Rule{
			{Attr: "aria-labelledby", Ref: true},
			{Selector: shopCell, Attr: "aria-labelledby", Ref: true},
			{Selector: `[data-test-id="product-info"] span`},
			{Selector: `.product-name a span`},
			{Selector: `.product-name span`},
			{Selector: `h2, h3, h4`},
			{Selector: `a[href*="/product/"]`, Attr: "aria-label"},
			{Selector: `img`, Attr: "alt"},
			{Attr: "aria-product", Transform: SlugTitle},
			{Selector: shopCell, Attr: "aria-product", Transform: SlugTitle},
		},
		Image: []Rule{
			{Selector: `[data-test-id="product-image"], img.product-image, .product-image-link img`, Attr: "src"},
			{Selector: `[data-test-id="product-image"], img.product-image, .product-image-link img`, Attr: "data-src"},
		},
		Price: []Rule{
			{Selector: `[data-test-id="amount"], .product-price .amount`},
		},
		Contract: []Rule{
			{Kind: KindXPath, Selector: `descendant-or-self::*[contains(concat(' ', normalize-space(@class), ' '), ' contractgrade ')]`},
		},
		Flag: []Rule{
			{Selector: `.flag-text, [aria-label*="Open Box"], .flagInner`},
		},
	}
}

// RulesFromConfig starts from DefaultRules and replaces every field that the
// configuration names. Field names and transforms are checked by
// config.Validate.
func RulesFromConfig(fields map[string][]config.ParseRule) FieldRules {
	rules := DefaultRules()
	for name, parsed := range fields {
		converted := make([]Rule, 0, len(parsed))
		for _, pr := range parsed {
			converted = append(converted, Rule{
				Kind:      pr.Type,
				Selector:  pr.Selector,
				Attr:      pr.Attribute,
				Transform: transforms[pr.Transform],
				Format:    pr.Format,
				Ref:       pr.Ref,
			})
		}
		switch name {
		case config.FieldLink:
			rules.Link = converted
		case config.FieldName:
			rules.Name = converted
		case config.FieldImage:
			rules.Image = converted
		case config.FieldPrice:
			rules.Price = converted
		case config.FieldContract:
			rules.Contract = converted
		case config.FieldFlag:
			rules.Flag = converted
		}
	}
	return rules
}

var transforms = map[string]func(string) string{
	config.TransformSlugTitle: SlugTitle,
}

// SlugTitle turns a URL slug into a display name:
// "hudson-leather-chair" becomes "Hudson Leather Chair".
func SlugTitle(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == '/'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
