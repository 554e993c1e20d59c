package reconciler

import (
	"context"
	"fmt"
	"time"

	"sjsage522/catalogworker/internal/metrics"
	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
	"sjsage522/catalogworker/services/store"
)

// Kind classifies a record against the persisted catalog
type Kind int

const (
	KindNew Kind = iota
	KindUpdated
	KindSkipped
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindUpdated:
		return "updated"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is produced exactly once per input record.
// ExistingID and Changed are set for Updated, Err for Failed.
type Decision struct {
	Kind       Kind
	Record     models.ProductRecord
	ExistingID string
	Changed    []string
	Err        error
}

// Engine classifies records by composite key and field diff
type Engine struct {
	store   store.Store
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine creates an engine backed by s. m may be nil.
func NewEngine(s store.Store, m *metrics.Metrics) *Engine {
	return &Engine{
		store:   s,
		log:     logger.ForReconciler(),
		metrics: m,
		now:     time.Now,
	}
}

// Now returns the engine clock used for updated_at stamps
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// Classify queries the store and diffs against the first match without writing
func (e *Engine) Classify(ctx context.Context, rec models.ProductRecord) Decision {
	key := store.KeyOf(rec)
	if key.Empty() {
		return e.Fail(rec, errors.NewValidation(rec.URL, "record has no brand, id or model to match on"))
	}

	existing, err := e.find(ctx, key)
	if err != nil {
		return e.Fail(rec, err)
	}
	if len(existing) == 0 {
		return Decision{Kind: KindNew, Record: rec}
	}

	first := existing[0]
	if len(existing) > 1 {
		e.log.Debug().Str("key", key.String()).Int("matches", len(existing)).Str("using", first.ID).Msg("several stored rows match")
	}

	changed := ChangedFields(first.Record, rec)
	if len(changed) == 0 {
		return Decision{Kind: KindSkipped, Record: rec, ExistingID: first.ID}
	}
	return Decision{Kind: KindUpdated, Record: rec, ExistingID: first.ID, Changed: changed}
}

// find converts a store panic into an error so one record cannot stop the run
func (e *Engine) find(ctx context.Context, key store.Key) (rows []store.ExistingRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewReconciliation(key.String(), fmt.Sprintf("query panicked: %v", r), nil)
		}
	}()

	rows, err = e.store.Find(ctx, key)
	if err != nil && errors.TypeOf(err) == "" {
		err = errors.NewReconciliation(key.String(), "query failed", err)
	}
	return rows, err
}

// Reconcile classifies rec and performs its single write
func (e *Engine) Reconcile(ctx context.Context, rec models.ProductRecord) Decision {
	d := e.Classify(ctx, rec)
	switch d.Kind {
	case KindNew:
		if err := e.store.Insert(ctx, rec); err != nil {
			d = e.Fail(rec, err)
		}
	case KindUpdated:
		if err := e.store.Update(ctx, d.ExistingID, rec, e.Now()); err != nil {
			d = e.Fail(rec, err)
		}
	}
	e.Record(d)
	return d
}

// Record logs and counts a settled decision
func (e *Engine) Record(d Decision) {
	e.metrics.IncDecision(d.Kind.String())

	ev := e.log.Debug()
	if d.Kind == KindFailed {
		ev = e.log.Warn().Err(d.Err)
	}
	ev.Str("decision", d.Kind.String()).
		Str("url", d.Record.URL).
		Str("key", store.KeyOf(d.Record).String()).
		Strs("changed", d.Changed).
		Msg("reconciled")
}

// Fail builds a Failed decision for rec, typing err as a reconciliation fault if it is untyped
func (e *Engine) Fail(rec models.ProductRecord, err error) Decision {
	if errors.TypeOf(err) == "" {
		err = errors.NewReconciliation(rec.URL, "reconciliation failed", err)
	}
	return Decision{Kind: KindFailed, Record: rec, Err: err}
}
