package crawler

import (
	"fmt"
	"strings"

	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
)

// Extractor turns a product page into a ProductRecord. Every field has its own
// rule; a rule that finds nothing, or fails, leaves its field at the default.
type Extractor struct {
	sel ProductSelectors
	log *logger.Logger
}

// NewExtractor creates an extractor for the given selectors
func NewExtractor(sel ProductSelectors) *Extractor {
	return &Extractor{sel: sel, log: logger.ForExtractor()}
}

// Extract reads every field of the record. Only an unusable document or a
// record without a url returns an error.
func (e *Extractor) Extract(doc Document, url string) (rec *models.ProductRecord, err error) {
	if doc == nil {
		return nil, errors.NewParsing(url, "document is unusable", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = errors.NewParsing(url, "extraction aborted", fmt.Errorf("%v", r))
		}
	}()

	r := &models.ProductRecord{URL: url}

	r.Title = fieldRule(e, url, "title", "", func() string { return e.title(doc) })
	r.Price = fieldRule(e, url, "price", models.NullPrice(), func() models.Price { return e.price(doc) })
	r.Brand = fieldRule(e, url, "brand", "", func() string { return e.brand(doc) })

	r.PrimaryImage = fieldRule(e, url, "primary_image", "", func() string { return e.primaryImage(doc) })
	r.OtherImages = fieldRule(e, url, "images", []string(nil), func() []string { return e.images(doc) })

	ids := fieldRule(e, url, "identifiers", [2]string{}, func() [2]string { return e.identifiers(doc) })
	r.ExternalID, r.Model = ids[0], ids[1]

	r.CategoryPath = fieldRule(e, url, "category", []string(nil), func() []string { return e.category(doc) })
	r.Description = fieldRule(e, url, "description", "", func() string { return e.description(doc) })
	r.Specifications = fieldRule(e, url, "specifications", []models.Spec(nil), func() []models.Spec { return e.specifications(doc) })

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// fieldRule runs one rule and falls back to def if it panics
func fieldRule[T any](e *Extractor, url, field string, def T, rule func() T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("url", url).Str("field", field).Interface("panic", r).Msg("field rule failed")
			v = def
		}
	}()
	return rule()
}

func (e *Extractor) title(doc Node) string {
	if h, ok := doc.First(e.sel.Title); ok {
		return h.Text()
	}
	return ""
}

func (e *Extractor) price(doc Node) models.Price {
	if p, ok := doc.First(e.sel.Price); ok {
		return models.ParsePrice(p.Text())
	}
	return models.NullPrice()
}

func (e *Extractor) brand(doc Node) string {
	if a, ok := doc.First(e.sel.BrandLink); ok {
		return a.Text()
	}
	if a, ok := doc.First(e.sel.BrandFallback); ok {
		return a.Text()
	}
	return ""
}

// primaryImage is the href of the first carousel link, empty or not
func (e *Extractor) primaryImage(doc Node) string {
	if a, ok := doc.First(e.sel.Images); ok {
		href, _ := a.Attr("href")
		return strings.TrimSpace(href)
	}
	return ""
}

// images lists every non-empty carousel href
func (e *Extractor) images(doc Node) []string {
	var hrefs []string
	for _, a := range doc.Find(e.sel.Images) {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			hrefs = append(hrefs, strings.TrimSpace(href))
		}
	}
	return hrefs
}

// identifiers returns the external id and the model number
func (e *Extractor) identifiers(doc Node) [2]string {
	var ids [2]string
	for _, span := range doc.Find(e.sel.IDSpans) {
		text := span.Text()
		if v, ok := helpers.TextAfter(text, e.sel.IDMarker); ok {
			ids[0] = v
		} else if v, ok := helpers.TextAfter(text, e.sel.ModelMarker); ok {
			ids[1] = v
		}
	}
	return ids
}

func (e *Extractor) category(doc Node) []string {
	var path []string
	for _, a := range doc.Find(e.sel.Breadcrumbs) {
		if text := a.Text(); text != "" {
			path = append(path, text)
		}
	}
	return path
}

func (e *Extractor) description(doc Node) string {
	var parts []string
	if lead, ok := doc.First(e.sel.LeadFeature); ok {
		parts = append(parts, lead.Text())
	}
	for _, li := range doc.Find(e.sel.FeatureItems) {
		parts = append(parts, li.Text())
	}
	if body, ok := doc.First(e.sel.LongDesc); ok {
		parts = append(parts, body.SpacedText())
	}

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func (e *Extractor) specifications(doc Node) []models.Spec {
	var specs []models.Spec
	for _, row := range doc.Find(e.sel.SpecRows) {
		header, ok := row.First(e.sel.SpecHeader)
		if !ok {
			continue
		}
		value, ok := row.First(e.sel.SpecValue)
		if !ok {
			continue
		}
		if e.sel.SpecHeaderStrip != "" {
			header = header.Without(e.sel.SpecHeaderStrip)
		}
		specs = append(specs, models.Spec{Name: header.Text(), Value: value.Text()})
	}
	return specs
}
