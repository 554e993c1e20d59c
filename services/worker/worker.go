package worker

import (
	"context"
	"math/rand"
	"time"

	"sjsage522/catalogworker/config"
	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/internal/crawler"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
	"sjsage522/catalogworker/services/persister"
	"sjsage522/catalogworker/services/publisher"
)

// Harvester produces the records of a list of brands
type Harvester interface {
	Run(ctx context.Context, brands []models.BrandTarget) crawler.HarvestResult
}

// Persister stores a run's records
type Persister interface {
	Persist(ctx context.Context, records []models.ProductRecord) persister.Summary
}

// Options configures a Worker
type Options struct {
	UseSchedule bool
	// TestMode 1 harvests a single random brand
	TestMode  int
	Publisher publisher.Publisher
	// BeforeRun is called at the start of every run, e.g. to drop cached documents
	BeforeRun func()
}

// Report is the outcome of one run
type Report struct {
	Started      time.Time
	Finished     time.Time
	Brands       []string
	FailedBrands []string
	Tallies      []crawler.BrandTally
	Summary      persister.Summary
}

// Worker runs the harvest and persist passes for the configured brands
type Worker struct {
	brands    *config.BrandSchedule
	harvester Harvester
	persister Persister
	opts      Options
	journal   helpers.LoggerInterface
	log       *logger.Logger

	now  func() time.Time
	pick func(n int) int
}

// NewWorker creates a new worker
func NewWorker(
	brands *config.BrandSchedule,
	harvester Harvester,
	p Persister,
	journal helpers.LoggerInterface,
	opts Options,
) *Worker {
	return &Worker{
		brands:    brands,
		harvester: harvester,
		persister: p,
		opts:      opts,
		journal:   journal,
		log:       logger.ForWorker(),
		now:       time.Now,
		pick:      rand.Intn,
	}
}

// SelectBrands resolves the brands of a run started at now
func (w *Worker) SelectBrands(now time.Time) []models.BrandTarget {
	brands := w.brands.Resolve(w.opts.UseSchedule, w.opts.TestMode, now)
	if w.opts.TestMode == 1 && len(brands) > 1 {
		brands = []models.BrandTarget{brands[w.pick(len(brands))]}
	}
	return brands
}

// Run performs one full run and always returns a report
func (w *Worker) Run(ctx context.Context) Report {
	report := Report{Started: w.now()}
	if w.opts.BeforeRun != nil {
		w.opts.BeforeRun()
	}

	brands := w.SelectBrands(report.Started)
	for _, b := range brands {
		report.Brands = append(report.Brands, b.Name)
	}
	if len(brands) == 0 {
		w.log.Warn().Str("weekday", report.Started.Weekday().String()).Msg("no brands to harvest")
	}
	w.log.Info().Strs("brands", report.Brands).Int("test_mode", w.opts.TestMode).Msg("run started")

	result := w.harvester.Run(ctx, brands)
	report.FailedBrands = result.Failed
	report.Tallies = result.Brands
	for _, name := range result.Failed {
		w.journal.LogError(name, errors.NewParsing(name, "brand yielded no records", nil))
	}

	report.Summary = w.persister.Persist(ctx, result.Records)
	for _, d := range report.Summary.Decisions {
		if d.Err != nil {
			w.journal.LogError(d.Record.URL, d.Err)
		}
	}

	if w.opts.Publisher != nil {
		if err := w.opts.Publisher.TrimStreams(); err != nil {
			w.journal.LogError("StreamTrimming", err)
		}
	}

	report.Finished = w.now()
	w.logSummary(report)
	return report
}

func (w *Worker) logSummary(r Report) {
	s := r.Summary
	w.log.Info().
		Int("new", s.New).
		Int("updated", s.Updated).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("total", s.Total).
		Bool("store", s.StoreAvailable).
		Strs("failed_brands", r.FailedBrands).
		Dur("took", r.Finished.Sub(r.Started)).
		Msg("run finished")
}
