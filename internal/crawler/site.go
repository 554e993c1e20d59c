package crawler

import (
	"regexp"
	"strings"
)

// DefaultSiteConfig returns the selectors for the BBQGuys catalog markup.
// The site renders with Material UI, so most hooks are Mui* classes plus a few
// generated bbq-* classes that change between deployments.
func DefaultSiteConfig(baseURL string) SiteConfig {
	return SiteConfig{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Pagination: PaginationSelectors{
			Region:       `nav[aria-label*="pagination"]`,
			Labelled:     `button[aria-label*="page"], a[aria-label*="page"]`,
			LabelPattern: regexp.MustCompile(`(?i)(?:go to )?page (\d+)`),
			Numbered:     `button.MuiPaginationItem-page, a.MuiPaginationItem-page`,
		},
		Listing: ListingSelectors{
			ItemLinks:      `a[href*="/i/"]`,
			ItemPathMarker: "/i/",
			Exclude:        []string{"gift-card"},
			PageParam:      "page",
		},
		Product: ProductSelectors{
			Title:           "h1",
			Price:           "span.MuiBox-root.bbq-0",
			BrandLink:       `a.MuiTypography-root.MuiLink-root.MuiLink-underlineAlways[href*="/brands/"]`,
			BrandFallback:   "a.MuiTypography-root.MuiLink-root",
			Images:          ".carousel__images a",
			IDSpans:         "span.MuiTypography-root.MuiTypography-body2.bbq-131zxzk",
			IDMarker:        "ID #",
			ModelMarker:     "Model #",
			Breadcrumbs:     "ol.MuiBreadcrumbs-ol a",
			LeadFeature:     "span.MuiTypography-keyFeatureBullet",
			FeatureItems:    "ul.bullets li",
			LongDesc:        "div.MuiTypography-root.MuiTypography-body1.bbq-ywiv8x",
			SpecRows:        "tbody.MuiTableBody-root tr",
			SpecHeader:      "th",
			SpecValue:       "td",
			SpecHeaderStrip: "button",
		},
	}
}
