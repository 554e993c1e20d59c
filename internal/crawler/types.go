package crawler

import (
	"context"
	"regexp"
)

// PageFetcher retrieves and parses one page. Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// PaginationSelectors locate the page-count signals on a brand listing
type PaginationSelectors struct {
	// Region is the pagination control container
	Region string
	// Labelled are controls whose aria-label names a page
	Labelled string
	// LabelPattern captures the page number from an aria-label
	LabelPattern *regexp.Regexp
	// Numbered are controls whose text is the page number
	Numbered string
}

// ListingSelectors locate product links on a brand listing page
type ListingSelectors struct {
	// ItemLinks selects anchors pointing at product pages
	ItemLinks string
	// ItemPathMarker must appear in an href for it to count as a product link
	ItemPathMarker string
	// Exclude drops hrefs containing any of these fragments
	Exclude []string
	// PageParam is the query parameter selecting the listing page
	PageParam string
}

// ProductSelectors locate each field on a product page
type ProductSelectors struct {
	Title         string
	Price         string
	BrandLink     string
	BrandFallback string
	Images        string
	IDSpans       string
	IDMarker      string
	ModelMarker   string
	Breadcrumbs   string
	LeadFeature   string
	FeatureItems  string
	LongDesc      string
	SpecRows      string
	SpecHeader    string
	SpecValue     string
	// SpecHeaderStrip is removed from header cells before their text is taken
	SpecHeaderStrip string
}

// SiteConfig is the markup configuration for one catalog site
type SiteConfig struct {
	BaseURL    string
	Pagination PaginationSelectors
	Listing    ListingSelectors
	Product    ProductSelectors
}
