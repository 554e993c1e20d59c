package crawler

import (
	"context"
	"strings"

	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/logger"
)

// Collector gathers canonical product URLs from a brand's listing pages
type Collector struct {
	fetcher PageFetcher
	baseURL string
	sel     ListingSelectors
	log     *logger.Logger
}

// NewCollector creates a collector resolving links against baseURL
func NewCollector(fetcher PageFetcher, baseURL string, sel ListingSelectors) *Collector {
	return &Collector{
		fetcher: fetcher,
		baseURL: baseURL,
		sel:     sel,
		log:     logger.ForCollector(),
	}
}

// Collect walks listing pages 1..maxPages and returns unique product URLs in
// the order first seen. It stops as soon as limit URLs are gathered; limit <= 0
// is unbounded. Pages that fail to fetch are skipped.
func (c *Collector) Collect(ctx context.Context, brandURL string, maxPages, limit int) []string {
	if maxPages < 1 {
		maxPages = 1
	}

	var urls []string
	seen := make(map[string]struct{})

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		pageURL, err := c.pageURL(brandURL, page)
		if err != nil {
			c.log.Warn().Err(err).Str("url", brandURL).Int("page", page).Msg("cannot build listing page URL")
			continue
		}

		doc, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			c.log.Warn().Err(err).Int("page", page).Msg("listing page skipped")
			continue
		}

		before := len(urls)
		for _, link := range doc.Find(c.sel.ItemLinks) {
			href, ok := link.Attr("href")
			if !ok || !c.isItemLink(href) {
				continue
			}
			canonical := helpers.Canonicalize(c.baseURL, href)
			if canonical == "" {
				continue
			}
			if _, dup := seen[canonical]; dup {
				continue
			}
			seen[canonical] = struct{}{}
			urls = append(urls, canonical)

			if limit > 0 && len(urls) >= limit {
				c.log.Debug().Int("page", page).Int("urls", len(urls)).Msg("limit reached")
				return urls
			}
		}

		c.log.Debug().Int("page", page).Int("new_urls", len(urls)-before).Msg("listing page collected")
	}

	return urls
}

// pageURL keeps page 1 verbatim and rewrites the page parameter for later pages
func (c *Collector) pageURL(brandURL string, page int) (string, error) {
	if page == 1 {
		return brandURL, nil
	}
	return helpers.WithQueryParam(brandURL, c.sel.PageParam, page)
}

func (c *Collector) isItemLink(href string) bool {
	if href == "" {
		return false
	}
	if c.sel.ItemPathMarker != "" && !strings.Contains(href, c.sel.ItemPathMarker) {
		return false
	}
	return !helpers.ContainsAny(href, c.sel.Exclude)
}
