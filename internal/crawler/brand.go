package crawler

import (
	"context"
	"time"

	"sjsage522/catalogworker/internal/metrics"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
)

// HarvestOptions bound a harvest run
type HarvestOptions struct {
	// Limit caps product URLs per brand, 0 is unbounded
	Limit int
	// MaxPages caps the detected page count, 0 uses the detected count
	MaxPages int
}

// BrandTally summarizes one brand of a harvest
type BrandTally struct {
	Brand     string
	Pages     int
	URLs      int
	Records   int
	Failures  int
	Duration  time.Duration
	Cancelled bool
}

// HarvestResult is the outcome of a harvest over every brand
type HarvestResult struct {
	Records []models.ProductRecord
	// Failed lists brands that produced zero records
	Failed []string
	Brands []BrandTally
}

// Harvester drives brands through page detection, URL collection and extraction, one at a time
type Harvester struct {
	fetcher   PageFetcher
	site      SiteConfig
	collector *Collector
	extractor *Extractor
	opts      HarvestOptions
	metrics   *metrics.Metrics
}

// NewHarvester creates a harvester for a site
func NewHarvester(fetcher PageFetcher, site SiteConfig, opts HarvestOptions, m *metrics.Metrics) *Harvester {
	return &Harvester{
		fetcher:   fetcher,
		site:      site,
		collector: NewCollector(fetcher, site.BaseURL, site.Listing),
		extractor: NewExtractor(site.Product),
		opts:      opts,
		metrics:   m,
	}
}

// Run harvests every brand in order and flattens their records
func (h *Harvester) Run(ctx context.Context, brands []models.BrandTarget) HarvestResult {
	var result HarvestResult
	for i, brand := range brands {
		if ctx.Err() != nil {
			break
		}

		log := logger.ForBrand(brand.Name)
		log.Info().Int("index", i+1).Int("of", len(brands)).Str("url", brand.URL).Msg("harvesting brand")

		records, tally := h.HarvestBrand(ctx, brand)
		result.Records = append(result.Records, records...)
		result.Brands = append(result.Brands, tally)
		if len(records) == 0 {
			result.Failed = append(result.Failed, brand.Name)
		}

		log.Info().
			Int("pages", tally.Pages).
			Int("urls", tally.URLs).
			Int("records", tally.Records).
			Int("failures", tally.Failures).
			Dur("took", tally.Duration).
			Msg("brand done")
	}
	return result
}

// HarvestBrand runs one brand end to end. Per-URL failures are logged and skipped.
func (h *Harvester) HarvestBrand(ctx context.Context, brand models.BrandTarget) ([]models.ProductRecord, BrandTally) {
	start := time.Now()
	tally := BrandTally{Brand: brand.Name}
	log := logger.ForBrand(brand.Name)

	if brand.URL == "" {
		log.Warn().Msg("brand has no url, skipped")
		return nil, tally
	}

	tally.Pages = h.pageCount(ctx, brand.URL)

	urls := h.collector.Collect(ctx, brand.URL, tally.Pages, h.opts.Limit)
	tally.URLs = len(urls)

	var records []models.ProductRecord
	for _, url := range urls {
		if ctx.Err() != nil {
			tally.Cancelled = true
			break
		}

		doc, err := h.fetcher.Fetch(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("product page skipped")
			tally.Failures++
			h.metrics.IncExtractionFailed()
			continue
		}

		rec, err := h.extractor.Extract(doc, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("product discarded")
			tally.Failures++
			h.metrics.IncExtractionFailed()
			continue
		}

		records = append(records, *rec)
		h.metrics.IncExtracted()
	}

	tally.Records = len(records)
	tally.Duration = time.Since(start)
	return records, tally
}

// pageCount detects the listing's page count, falling back to 1 when the listing cannot be fetched
func (h *Harvester) pageCount(ctx context.Context, brandURL string) int {
	pages := 1
	doc, err := h.fetcher.Fetch(ctx, brandURL)
	if err != nil {
		logger.ForCollector().Warn().Err(err).Str("url", brandURL).Msg("page count unavailable, assuming 1")
	} else {
		pages = DetectPageCount(doc, h.site.Pagination)
	}

	if h.opts.MaxPages > 0 && pages > h.opts.MaxPages {
		pages = h.opts.MaxPages
	}
	return pages
}
