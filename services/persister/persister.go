package persister

import (
	"context"
	stderrors "errors"

	"sjsage522/catalogworker/internal/metrics"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
	"sjsage522/catalogworker/services/publisher"
	"sjsage522/catalogworker/services/reconciler"
	"sjsage522/catalogworker/services/store"
)

// DefaultBatchSize bounds a bulk insert when no size is configured
const DefaultBatchSize = 100

// Summary counts the decisions of one Persist call
type Summary struct {
	New            int
	Updated        int
	Skipped        int
	Failed         int
	Total          int
	StoreAvailable bool
	Decisions      []reconciler.Decision
}

// Options configures a Persister
type Options struct {
	SnapshotPath string
	BatchSize    int
	Uploader     Uploader
	Publisher    publisher.Publisher
	Metrics      *metrics.Metrics
}

// Persister writes the snapshot and reconciles records into the store
type Persister struct {
	store  store.Store
	engine *reconciler.Engine
	opts   Options
	log    *logger.Logger
}

// NewPersister creates a persister. A nil store means snapshot-only persistence.
func NewPersister(s store.Store, opts Options) *Persister {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	p := &Persister{
		store: s,
		opts:  opts,
		log:   logger.ForPersister(),
	}
	if s != nil {
		p.engine = reconciler.NewEngine(s, opts.Metrics)
	}
	return p
}

// Persist writes the full snapshot and then reconciles every record in order.
// Snapshot faults are logged and never prevent the store pass.
func (p *Persister) Persist(ctx context.Context, records []models.ProductRecord) Summary {
	sum := Summary{Total: len(records), StoreAvailable: p.store != nil}

	p.snapshot(ctx, records)

	if p.store == nil {
		p.log.Warn().Int("records", len(records)).Msg("no store available, snapshot only")
		return sum
	}

	run := &batchRun{
		p:         p,
		decisions: make([]reconciler.Decision, len(records)),
		settled:   make([]bool, len(records)),
	}
	for i, rec := range records {
		if run.pendingMatches(store.KeyOf(rec)) {
			run.flush(ctx)
		}

		d := p.engine.Classify(ctx, rec)
		switch d.Kind {
		case reconciler.KindNew:
			run.pending = append(run.pending, i)
			run.decisions[i] = d
			if len(run.pending) >= p.opts.BatchSize {
				run.flush(ctx)
			}
		case reconciler.KindUpdated:
			run.flush(ctx)
			if err := p.store.Update(ctx, d.ExistingID, rec, p.engine.Now()); err != nil {
				d = p.engine.Fail(rec, err)
			}
			run.settle(i, d)
		default:
			run.settle(i, d)
		}
	}
	run.flush(ctx)

	sum.Decisions = run.decisions
	for _, d := range run.decisions {
		switch d.Kind {
		case reconciler.KindNew:
			sum.New++
		case reconciler.KindUpdated:
			sum.Updated++
		case reconciler.KindSkipped:
			sum.Skipped++
		case reconciler.KindFailed:
			sum.Failed++
		}
	}
	return sum
}

func (p *Persister) snapshot(ctx context.Context, records []models.ProductRecord) {
	if p.opts.SnapshotPath == "" {
		return
	}
	if err := WriteSnapshot(p.opts.SnapshotPath, records); err != nil {
		p.log.Error().Err(err).Str("path", p.opts.SnapshotPath).Msg("failed to write snapshot")
		p.opts.Metrics.IncError(string(errors.ErrorTypePersistence))
		return
	}
	p.log.Info().Str("path", p.opts.SnapshotPath).Int("records", len(records)).Msg("snapshot written")

	if p.opts.Uploader == nil {
		return
	}
	if err := p.opts.Uploader.Upload(ctx, p.opts.SnapshotPath); err != nil {
		p.log.Error().Err(err).Msg("failed to upload snapshot")
		p.opts.Metrics.IncError(string(errors.ErrorTypePersistence))
	}
}

// batchRun holds the New decisions waiting for a bulk insert. Settled
// decisions are announced in input order, so a decision that settles while
// an earlier insert is still buffered waits for that flush.
type batchRun struct {
	p         *Persister
	decisions []reconciler.Decision
	settled   []bool
	next      int
	pending   []int
}

// pendingMatches reports whether a buffered record would be found by key
func (r *batchRun) pendingMatches(key store.Key) bool {
	if key.Empty() {
		return false
	}
	for _, i := range r.pending {
		if key.Matches(r.decisions[i].Record) {
			return true
		}
	}
	return false
}

// flush inserts the buffered records. A failed bulk insert is retried one
// record at a time, starting after the rows the store reports as written.
func (r *batchRun) flush(ctx context.Context) {
	if len(r.pending) == 0 {
		return
	}
	pending := r.pending
	r.pending = nil

	bulk, ok := r.p.store.(store.BulkInserter)
	if !ok {
		r.insertEach(ctx, pending)
		return
	}

	recs := make([]models.ProductRecord, 0, len(pending))
	for _, i := range pending {
		recs = append(recs, r.decisions[i].Record)
	}

	err := bulk.InsertMany(ctx, recs)
	if err == nil {
		r.p.opts.Metrics.IncBatch()
		r.p.log.Debug().Int("records", len(recs)).Msg("batch inserted")
		for _, i := range pending {
			r.settle(i, r.decisions[i])
		}
		return
	}

	written := 0
	var partial *store.PartialInsertError
	if stderrors.As(err, &partial) {
		written = partial.Inserted
	}
	r.p.log.Warn().Err(err).Int("records", len(recs)).Int("written", written).Msg("batch insert failed, retrying one by one")
	r.p.opts.Metrics.IncError(string(errors.ErrorTypePersistence))

	for _, i := range pending[:written] {
		r.settle(i, r.decisions[i])
	}
	r.insertEach(ctx, pending[written:])
}

func (r *batchRun) insertEach(ctx context.Context, indexes []int) {
	for _, i := range indexes {
		d := r.decisions[i]
		if err := r.p.store.Insert(ctx, d.Record); err != nil {
			d = r.p.engine.Fail(d.Record, err)
		}
		r.settle(i, d)
	}
}

// settle stores a final decision and announces every settled decision up to
// the first one still waiting on an insert
func (r *batchRun) settle(i int, d reconciler.Decision) {
	r.decisions[i] = d
	r.settled[i] = true
	for r.next < len(r.settled) && r.settled[r.next] {
		r.announce(r.decisions[r.next])
		r.next++
	}
}

// announce records a decision and publishes successful writes
func (r *batchRun) announce(d reconciler.Decision) {
	r.p.engine.Record(d)

	if d.Kind != reconciler.KindNew && d.Kind != reconciler.KindUpdated {
		return
	}
	if r.p.opts.Publisher == nil {
		return
	}
	ev := publisher.ChangeEvent{
		Action:  d.Kind.String(),
		Brand:   d.Record.Brand,
		ID:      d.Record.ExternalID,
		Model:   d.Record.Model,
		Title:   d.Record.Title,
		URL:     d.Record.URL,
		Changed: d.Changed,
	}
	if err := publisher.PublishChange(r.p.opts.Publisher, ev); err != nil {
		r.p.log.Warn().Err(err).Str("url", d.Record.URL).Msg("failed to publish change")
		r.p.opts.Metrics.IncError(string(errors.ErrorTypePublisher))
	}
}
