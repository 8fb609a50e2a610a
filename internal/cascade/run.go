// Package cascade propagates price changes through dependent tuples:
// phase-ordered resolution, cycle-safe worklist execution, and redundancy
// filtering before persistence.
package cascade

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ratecascade/internal/domain"
)

// Phase of the cascade state machine. Later phases win when two branches
// write the same tuple within one run.
type Phase int

const (
	PhaseReversed Phase = iota
	PhaseStrategy
	PhaseLinked
	PhaseDerived
	PhasePush
)

func (p Phase) String() string {
	switch p {
	case PhaseReversed:
		return "reversed"
	case PhaseStrategy:
		return "strategy"
	case PhaseLinked:
		return "linked"
	case PhaseDerived:
		return "derived"
	case PhasePush:
		return "push"
	}
	return "unknown"
}

// Node is one unit of cascade work: an assignment scoped to a date window,
// at a given expansion depth.
type Node struct {
	Assignment domain.PricingAssignment
	Range      domain.DateRange
	Depth      int
}

func (n Node) visitKey() string {
	t := n.Assignment.Tuple()
	return fmt.Sprintf("%d:%d:%d:%s:%s:%s",
		t.HotelID, t.RatePlanID, t.RoomProductID, n.Assignment.Method,
		domain.DayKey(n.Range.From), domain.DayKey(n.Range.To))
}

type priceKey struct {
	tuple domain.TupleRef
	day   string
}

type cachedRow struct {
	row   domain.DailyPrice
	phase Phase
}

// Deps are the collaborators a run reads through.
type Deps struct {
	Repo        domain.PriceRepository
	Inventory   domain.InventoryProvider
	FeatureRate domain.FeatureRateProvider
	Adjustments domain.AdjustmentProvider
	Taxes       domain.TaxProvider
	Snapshots   domain.SnapshotCache
}

// Run is the per-invocation cascade context: the visited set, the in-run
// price cache and affected-row accounting all live here, never in process
// globals, so concurrent runs for different hotels cannot interfere.
// Run implements pricing.Lookup.
type Run struct {
	deps Deps
	rng  domain.DateRange
	log  zerolog.Logger

	mu        sync.Mutex
	visited   map[string]struct{}
	rows      map[priceKey]cachedRow
	targets   map[priceKey]float64
	external  map[priceKey]domain.PMSPrice
	persisted map[domain.TupleRef]map[string]domain.DailyPrice
	snapshots map[domain.TupleRef]map[string]float64
	related   map[int64][]domain.RelatedProduct
	affected  map[domain.TupleRef]struct{}
	writes    int
}

func NewRun(deps Deps, rng domain.DateRange, log zerolog.Logger) *Run {
	return &Run{
		deps:      deps,
		rng:       rng,
		log:       log,
		visited:   make(map[string]struct{}),
		rows:      make(map[priceKey]cachedRow),
		targets:   make(map[priceKey]float64),
		external:  make(map[priceKey]domain.PMSPrice),
		persisted: make(map[domain.TupleRef]map[string]domain.DailyPrice),
		snapshots: make(map[domain.TupleRef]map[string]float64),
		related:   make(map[int64][]domain.RelatedProduct),
		affected:  make(map[domain.TupleRef]struct{}),
	}
}

func (r *Run) Range() domain.DateRange { return r.rng }

// visit records a node; false means it was already processed this run.
func (r *Run) visit(n Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := n.visitKey()
	if _, seen := r.visited[k]; seen {
		return false
	}
	r.visited[k] = struct{}{}
	return true
}

// SetExternal loads PMS-pulled prices for a tuple before execution.
func (r *Run) SetExternal(t domain.TupleRef, prices []domain.PMSPrice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range prices {
		r.external[priceKey{tuple: t, day: domain.DayKey(p.Date)}] = p
	}
}

// commit publishes persisted rows into the in-run cache. Precedence: a
// later phase overwrites, a duplicate write within the same phase keeps
// the first value and warns. PMS and POSITIONING results additionally
// become authoritative targets for the REVERSED phase.
func (r *Run) commit(phase Phase, method domain.PricingMethod, rows []domain.DailyPrice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		t := domain.TupleRef{HotelID: row.HotelID, RoomProductID: row.RoomProductID, RatePlanID: row.RatePlanID}
		k := priceKey{tuple: t, day: domain.DayKey(row.Date)}
		if prev, ok := r.rows[k]; ok {
			if prev.phase == phase {
				r.log.Warn().
					Int64("hotel", t.HotelID).
					Int64("room_product", t.RoomProductID).
					Int64("rate_plan", t.RatePlanID).
					Str("date", k.day).
					Str("phase", phase.String()).
					Msg("duplicate write within phase, keeping first value")
				continue
			}
			if prev.phase > phase {
				continue
			}
		}
		r.rows[k] = cachedRow{row: row, phase: phase}
		if method == domain.MethodPMS || method == domain.MethodPositioning {
			r.targets[k] = row.BasePrice
		}
		r.affected[t] = struct{}{}
		r.writes++
	}
}

// Result reports the rows written and the tuples they belong to.
func (r *Run) Result() domain.AffectedResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := domain.AffectedResult{Rows: r.writes}
	for t := range r.affected {
		out.Tuples = append(out.Tuples, t)
	}
	sort.Slice(out.Tuples, func(i, j int) bool {
		a, b := out.Tuples[i], out.Tuples[j]
		if a.RatePlanID != b.RatePlanID {
			return a.RatePlanID < b.RatePlanID
		}
		return a.RoomProductID < b.RoomProductID
	})
	return out
}

func (r *Run) affectedTuples() []domain.TupleRef { return r.Result().Tuples }

// ---- pricing.Lookup ----

func (r *Run) BasePrice(ctx context.Context, t domain.TupleRef, date time.Time) (float64, bool) {
	if row, ok := r.runRow(t, date); ok {
		return row.BasePrice, true
	}
	if row, ok := r.persistedRow(ctx, t, date); ok {
		return row.BasePrice, true
	}
	return 0, false
}

func (r *Run) NetPrice(ctx context.Context, t domain.TupleRef, date time.Time) (float64, bool) {
	if row, ok := r.runRow(t, date); ok {
		return row.NetPrice, true
	}
	if row, ok := r.persistedRow(ctx, t, date); ok {
		return row.NetPrice, true
	}
	return 0, false
}

func (r *Run) AuthoritativeTarget(_ context.Context, t domain.TupleRef, date time.Time) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.targets[priceKey{tuple: t, day: domain.DayKey(date)}]
	return v, ok
}

func (r *Run) ExternalPrice(_ context.Context, t domain.TupleRef, date time.Time) (domain.PMSPrice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.external[priceKey{tuple: t, day: domain.DayKey(date)}]
	return p, ok
}

func (r *Run) Related(ctx context.Context, hotelID, roomProductID int64) ([]domain.RelatedProduct, error) {
	r.mu.Lock()
	if rels, ok := r.related[roomProductID]; ok {
		r.mu.Unlock()
		return rels, nil
	}
	r.mu.Unlock()

	rels, err := r.deps.Repo.ListRelated(ctx, hotelID, roomProductID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.related[roomProductID] = rels
	r.mu.Unlock()
	return rels, nil
}

func (r *Run) Available(ctx context.Context, hotelID, roomProductID int64, date time.Time) (int, int, error) {
	return r.deps.Inventory.AvailableUnits(ctx, hotelID, roomProductID, date)
}

func (r *Run) FeatureRates(ctx context.Context, hotelID, roomProductID int64, date time.Time) ([]domain.FeatureRate, error) {
	return r.deps.FeatureRate.FeatureRates(ctx, hotelID, roomProductID, date)
}

func (r *Run) PlanAdjustment(ctx context.Context, hotelID, ratePlanID int64, date time.Time) (*domain.Adjustment, error) {
	return r.deps.Adjustments.RatePlanAdjustment(ctx, hotelID, ratePlanID, date)
}

func (r *Run) Taxes(ctx context.Context, hotelID, ratePlanID int64, date time.Time) ([]domain.TaxSetting, error) {
	return r.deps.Taxes.TaxSettings(ctx, hotelID, ratePlanID, date)
}

// ---- internal caches ----

func (r *Run) runRow(t domain.TupleRef, date time.Time) (domain.DailyPrice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[priceKey{tuple: t, day: domain.DayKey(date)}]
	return c.row, ok
}

// persistedRow lazily loads a tuple's stored series for the run's window.
func (r *Run) persistedRow(ctx context.Context, t domain.TupleRef, date time.Time) (domain.DailyPrice, bool) {
	r.mu.Lock()
	byDay, ok := r.persisted[t]
	r.mu.Unlock()
	if !ok {
		rows, err := r.deps.Repo.GetDailyPrices(ctx, t.HotelID, t.RoomProductID, t.RatePlanID, r.rng)
		if err != nil {
			r.log.Warn().Err(err).
				Int64("room_product", t.RoomProductID).
				Int64("rate_plan", t.RatePlanID).
				Msg("loading persisted prices failed")
			return domain.DailyPrice{}, false
		}
		byDay = make(map[string]domain.DailyPrice, len(rows))
		for _, row := range rows {
			byDay[domain.DayKey(row.Date)] = row
		}
		r.mu.Lock()
		r.persisted[t] = byDay
		r.mu.Unlock()
	}
	row, ok := byDay[domain.DayKey(date)]
	return row, ok
}

// knownBase is the redundancy filter's view: in-run value first, then the
// snapshot cache, then the persisted series.
func (r *Run) knownBase(ctx context.Context, t domain.TupleRef, date time.Time) (float64, bool) {
	if row, ok := r.runRow(t, date); ok {
		return row.BasePrice, true
	}
	day := domain.DayKey(date)

	r.mu.Lock()
	snap, fetched := r.snapshots[t]
	r.mu.Unlock()
	if !fetched && r.deps.Snapshots != nil {
		m, found, err := r.deps.Snapshots.GetBasePrices(ctx, t, r.rng)
		if err != nil {
			r.log.Warn().Err(err).Msg("snapshot read failed")
		}
		if !found {
			m = nil
		}
		r.mu.Lock()
		r.snapshots[t] = m
		r.mu.Unlock()
		snap = m
	}
	if v, ok := snap[day]; ok {
		return v, true
	}

	if row, ok := r.persistedRow(ctx, t, date); ok {
		return row.BasePrice, true
	}
	return 0, false
}

// rememberSnapshot folds freshly written rows into the per-tuple snapshot
// and pushes it to the cache. Best effort.
func (r *Run) rememberSnapshot(ctx context.Context, rows []domain.DailyPrice) {
	if r.deps.Snapshots == nil {
		return
	}
	byTuple := make(map[domain.TupleRef]map[string]float64)
	r.mu.Lock()
	for _, row := range rows {
		t := domain.TupleRef{HotelID: row.HotelID, RoomProductID: row.RoomProductID, RatePlanID: row.RatePlanID}
		if byTuple[t] == nil {
			merged := make(map[string]float64, len(r.snapshots[t])+1)
			for k, v := range r.snapshots[t] {
				merged[k] = v
			}
			byTuple[t] = merged
		}
		byTuple[t][domain.DayKey(row.Date)] = row.BasePrice
	}
	for t, m := range byTuple {
		r.snapshots[t] = m
	}
	r.mu.Unlock()

	for t, m := range byTuple {
		if err := r.deps.Snapshots.SetBasePrices(ctx, t, r.rng, m); err != nil {
			r.log.Warn().Err(err).Msg("snapshot write failed")
		}
	}
}
