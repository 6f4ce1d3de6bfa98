package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// Extraction is the outcome of one extraction pass over a page snapshot.
type Extraction struct {
	Listings []types.RawListing

	// Elements is the number of product elements matched.
	Elements int
	// Incomplete counts elements dropped for lacking a link or a name.
	Incomplete int
	// Duplicates counts elements whose URL was already seen in this pass.
	Duplicates int
	// Failed counts elements whose extraction errored.
	Failed int
}

// Extractor turns product elements of a rendered listing page into raw
// listings using ordered selector fallbacks.
type Extractor struct {
	selector string
	origin   string
	rules    FieldRules
	logger   *slog.Logger
}

// NewExtractor creates an extractor for elements matching productSelector.
// Root-relative links are resolved against origin.
func NewExtractor(productSelector, origin string, rules FieldRules, logger *slog.Logger) *Extractor {
	return &Extractor{
		selector: productSelector,
		origin:   origin,
		rules:    rules,
		logger:   logger.With("component", "page_extractor"),
	}
}

// Extract parses html and returns one RawListing per distinct product URL.
// Per-element failures are logged and counted; they never fail the pass.
func (e *Extractor) Extract(htmlText string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	ids := indexIDs(doc)
	elements := doc.Find(e.selector)
	out := &Extraction{Elements: elements.Length()}
	seen := make(map[string]struct{}, out.Elements)

	elements.Each(func(i int, el *goquery.Selection) {
		listing, err := e.extractOne(i, el, ids)
		if err != nil {
			out.Failed++
			e.logger.Warn("skipping product element", "index", i, "error", err)
			return
		}

		if listing.ProductURL == "" || listing.Name == "" {
			out.Incomplete++
			e.logger.Debug("element lacks link or name", "index", i, "link", listing.Link, "name", listing.Name)
			return
		}
		if _, dup := seen[listing.ProductURL]; dup {
			out.Duplicates++
			return
		}
		seen[listing.ProductURL] = struct{}{}
		out.Listings = append(out.Listings, listing)
	})

	e.logger.Info("extracted products",
		"products", len(out.Listings),
		"elements", out.Elements,
		"incomplete", out.Incomplete,
		"duplicates", out.Duplicates,
		"failed", out.Failed,
	)
	return out, nil
}

// extractOne evaluates every field of a single element. A panic inside the
// HTML libraries is turned into an ExtractionError for that element.
func (e *Extractor) extractOne(index int, el *goquery.Selection, ids map[string]string) (listing types.RawListing, err error) {
	field := ""
	defer func() {
		if r := recover(); r != nil {
			err = &types.ExtractionError{Index: index, Field: field, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	listing.Index = index

	field = "link"
	if listing.Link, err = e.first(el, e.rules.Link, ids); err != nil {
		return listing, &types.ExtractionError{Index: index, Field: field, Err: err}
	}
	if abs, ok := types.AbsoluteURL(e.origin, listing.Link); ok {
		listing.ProductURL = abs
	}

	field = "name"
	if listing.Name, err = e.first(el, e.rules.Name, ids); err != nil {
		return listing, &types.ExtractionError{Index: index, Field: field, Err: err}
	}

	field = "image"
	if listing.Image, err = e.first(el, e.rules.Image, ids); err != nil {
		return listing, &types.ExtractionError{Index: index, Field: field, Err: err}
	}

	field = "price"
	if listing.PriceTexts, err = e.all(el, e.rules.Price, ids); err != nil {
		return listing, &types.ExtractionError{Index: index, Field: field, Err: err}
	}

	field = "contract"
	if listing.ContractMarker, err = e.present(el, e.rules.Contract); err != nil {
		return listing, &types.ExtractionError{Index: index, Field: field, Err: err}
	}

	field = "flag"
	if listing.FlagText, err = e.first(el, e.rules.Flag, ids); err != nil {
		return listing, &types.ExtractionError{Index: index, Field: field, Err: err}
	}

	listing.FullText = collapse(el.Text())
	return listing, nil
}

// first returns the first non-empty value produced by the ordered rules.
func (e *Extractor) first(el *goquery.Selection, rules []Rule, ids map[string]string) (string, error) {
	for _, rule := range rules {
		values, err := ruleValues(el, rule, ids, true)
		if err != nil {
			return "", err
		}
		if len(values) > 0 {
			return values[0], nil
		}
	}
	return "", nil
}

// all returns every value of the first rule that produces any.
func (e *Extractor) all(el *goquery.Selection, rules []Rule, ids map[string]string) ([]string, error) {
	for _, rule := range rules {
		values, err := ruleValues(el, rule, ids, false)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			return values, nil
		}
	}
	return nil, nil
}

// present reports whether any rule matches at least one node.
func (e *Extractor) present(el *goquery.Selection, rules []Rule) (bool, error) {
	for _, rule := range rules {
		nodes, err := ruleNodes(el, rule)
		if err != nil {
			return false, err
		}
		if len(nodes) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ruleNodes selects the nodes a rule points at under el.
func ruleNodes(el *goquery.Selection, rule Rule) ([]*html.Node, error) {
	if rule.Selector == "" {
		return el.Nodes[:1], nil
	}
	switch rule.Kind {
	case "", KindCSS:
		return el.Find(rule.Selector).Nodes, nil
	case KindXPath:
		nodes, err := htmlquery.QueryAll(el.Nodes[0], rule.Selector)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", rule.Selector, err)
		}
		return nodes, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
}

// ruleValues reads the rule's value from each selected node, skipping empty
// ones. With firstOnly it stops at the first non-empty value.
func ruleValues(el *goquery.Selection, rule Rule, ids map[string]string, firstOnly bool) ([]string, error) {
	nodes, err := ruleNodes(el, rule)
	if err != nil {
		return nil, err
	}

	var values []string
	for _, n := range nodes {
		var val string
		if rule.Attr == "" || rule.Attr == "text" {
			val = collapse(htmlquery.InnerText(n))
		} else {
			val = strings.TrimSpace(htmlquery.SelectAttr(n, rule.Attr))
		}

		if val != "" && rule.Ref {
			val = ids[val]
		}
		if val != "" && rule.Transform != nil {
			val = rule.Transform(val)
		}
		if val != "" && rule.Format != "" {
			val = fmt.Sprintf(rule.Format, val)
		}
		if val == "" {
			continue
		}

		values = append(values, val)
		if firstOnly {
			break
		}
	}
	return values, nil
}

// indexIDs maps element ids to their text, for aria-labelledby lookups.
func indexIDs(doc *goquery.Document) map[string]string {
	ids := make(map[string]string)
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if _, ok := ids[id]; !ok {
			ids[id] = collapse(s.Text())
		}
	})
	return ids
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
