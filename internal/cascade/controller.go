package cascade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"ratecascade/internal/adapters/observability"
	"ratecascade/internal/domain"
	"ratecascade/internal/pricing"
)

// MaxDepth bounds recursive expansion per run. Exceeding it stops that
// branch only; cyclic LINK/DERIVED configurations terminate here.
const MaxDepth = 10

const (
	defaultStrategyChunk = 20
	defaultDerivedChunk  = 50
	defaultConcurrency   = 8
)

// Controller orchestrates resolver and calculators across a date range.
// Phases run to completion over their full dependent set before the next
// one starts; newly written tuples become the next round's origins until
// the visited set or the depth cap halts expansion.
type Controller struct {
	repo     domain.PriceRepository
	registry *pricing.Registry
	resolver *Resolver
	filter   *Filter
	queue    domain.TaskQueue
	log      zerolog.Logger

	StrategyChunkSize int
	DerivedChunkSize  int
	Concurrency       int
}

func NewController(repo domain.PriceRepository, registry *pricing.Registry, resolver *Resolver, filter *Filter, queue domain.TaskQueue, log zerolog.Logger) *Controller {
	return &Controller{
		repo:              repo,
		registry:          registry,
		resolver:          resolver,
		filter:            filter,
		queue:             queue,
		log:               log,
		StrategyChunkSize: defaultStrategyChunk,
		DerivedChunkSize:  defaultDerivedChunk,
		Concurrency:       defaultConcurrency,
	}
}

var phaseOrder = []Phase{PhaseReversed, PhaseStrategy, PhaseLinked, PhaseDerived}

// Execute runs the cascade from the given origins until the frontier is
// exhausted. Calculation failures degrade per branch; persistence failures
// are returned.
func (c *Controller) Execute(ctx context.Context, run *Run, origins []Node) (domain.AffectedResult, error) {
	frontier := origins
	for len(frontier) > 0 {
		var next []Node
		for _, phase := range phaseOrder {
			deps := c.admit(run, c.resolver.Resolve(ctx, frontier, phase))
			written, err := c.runPhase(ctx, run, phase, deps)
			if err != nil {
				return run.Result(), err
			}
			next = append(next, written...)
		}
		frontier = next
	}
	if err := c.enqueuePushTasks(ctx, run); err != nil {
		return run.Result(), err
	}
	return run.Result(), nil
}

// Seed computes the origin nodes themselves (depth 0), in method order so
// that source-of-truth tuples land before the ones reading them. The
// returned nodes are the ones whose rows actually changed; they form the
// initial frontier for Execute.
func (c *Controller) Seed(ctx context.Context, run *Run, nodes []Node) ([]Node, error) {
	order := map[domain.PricingMethod]int{
		domain.MethodPMS: 0, domain.MethodFixed: 1, domain.MethodFeatureBased: 2,
		domain.MethodAverage: 3, domain.MethodCombined: 4, domain.MethodPositioning: 5,
		domain.MethodAttribute: 6, domain.MethodReversed: 7, domain.MethodLink: 8,
		domain.MethodDerived: 9,
	}
	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && order[sorted[j].Assignment.Method] < order[sorted[j-1].Assignment.Method]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var frontier []Node
	for _, n := range sorted {
		if !run.visit(n) {
			continue
		}
		written, err := c.process(ctx, run, phaseForMethod(n.Assignment.Method), n)
		if err != nil {
			return frontier, err
		}
		frontier = append(frontier, written...)
	}
	return frontier, nil
}

func phaseForMethod(m domain.PricingMethod) Phase {
	switch m {
	case domain.MethodReversed:
		return PhaseReversed
	case domain.MethodLink:
		return PhaseLinked
	case domain.MethodDerived:
		return PhaseDerived
	default:
		return PhaseStrategy
	}
}

// admit applies the run guards: the visited set breaks cycles, the depth
// cap stops runaway branches. Both skip the node, warn and keep the rest
// of the cascade going.
func (c *Controller) admit(run *Run, nodes []Node) []Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Depth > MaxDepth {
			observability.ObserveCascadeSkip("depth")
			c.log.Warn().
				Int("depth", n.Depth).
				Int64("room_product", n.Assignment.RoomProductID).
				Int64("rate_plan", n.Assignment.RatePlanID).
				Msg("depth cap reached, stopping branch")
			continue
		}
		if !run.visit(n) {
			observability.ObserveCascadeSkip("visited")
			c.log.Warn().
				Int64("room_product", n.Assignment.RoomProductID).
				Int64("rate_plan", n.Assignment.RatePlanID).
				Str("method", string(n.Assignment.Method)).
				Msg("tuple revisited within run, cycle broken")
			continue
		}
		out = append(out, n)
	}
	return out
}

// runPhase processes a phase's dependent set in bounded chunks; items in a
// chunk run concurrently, the next chunk starts after the current settles.
func (c *Controller) runPhase(ctx context.Context, run *Run, phase Phase, nodes []Node) ([]Node, error) {
	chunkSize := c.StrategyChunkSize
	if phase == PhaseDerived {
		chunkSize = c.DerivedChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = defaultStrategyChunk
	}

	var written []Node
	for start := 0; start < len(nodes); start += chunkSize {
		end := start + chunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		chunk := nodes[start:end]

		sem := semaphore.NewWeighted(int64(c.Concurrency))
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for _, n := range chunk {
			if err := sem.Acquire(ctx, 1); err != nil {
				return written, err
			}
			wg.Add(1)
			go func(n Node) {
				defer wg.Done()
				defer sem.Release(1)
				w, err := c.process(ctx, run, phase, n)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				written = append(written, w...)
			}(n)
		}
		wg.Wait()
		if len(errs) > 0 {
			return written, errors.Join(errs...)
		}
	}
	return written, nil
}

// process computes one node: load configuration, run its calculator, drop
// redundant rows, persist the rest and publish them into the run cache.
// Missing entities and calculator failures skip the node; persistence
// failures are returned.
func (c *Controller) process(ctx context.Context, run *Run, phase Phase, n Node) ([]Node, error) {
	a := n.Assignment
	product, err := c.repo.GetRoomProduct(ctx, a.RoomProductID)
	if err != nil {
		c.skipNode(err, n, "room product")
		return nil, nil
	}
	plan, err := c.repo.GetRatePlan(ctx, a.RatePlanID)
	if err != nil {
		c.skipNode(err, n, "rate plan")
		return nil, nil
	}
	calc, ok := c.registry.For(a.Method)
	if !ok {
		c.log.Warn().Str("method", string(a.Method)).Msg("no calculator for method, skipping")
		return nil, nil
	}

	rows, err := calc.Compute(ctx, pricing.Input{
		Product:    product,
		Plan:       plan,
		Assignment: a,
		Dates:      n.Range.Days(),
		Lookup:     run,
	})
	if err != nil {
		c.skipNode(err, n, "calculator")
		return nil, nil
	}
	observability.ObserveCascadeNode(phase.String(), string(a.Method))

	kept, dropped := c.filter.Drop(ctx, run, rows)
	observability.ObserveRedundantDrops(dropped)
	if len(kept) == 0 {
		return nil, nil
	}

	if err := c.repo.UpsertDailyPrices(ctx, kept); err != nil {
		return nil, err
	}
	observability.ObservePriceWrites(len(kept))
	run.commit(phase, a.Method, kept)
	run.rememberSnapshot(ctx, kept)

	return c.writtenNodes(ctx, n, kept), nil
}

// writtenNodes turns persisted rows into next-round origins, one per
// touched tuple. Cross-tuple rows (REVERSED, MRFC-side ATTRIBUTE) pick up
// that tuple's own assignment so later phases see the right method.
func (c *Controller) writtenNodes(ctx context.Context, n Node, rows []domain.DailyPrice) []Node {
	own := n.Assignment.Tuple()
	byTuple := make(map[domain.TupleRef]struct{})
	var out []Node
	for _, row := range rows {
		t := domain.TupleRef{HotelID: row.HotelID, RoomProductID: row.RoomProductID, RatePlanID: row.RatePlanID}
		if _, dup := byTuple[t]; dup {
			continue
		}
		byTuple[t] = struct{}{}

		a := n.Assignment
		if t != own {
			other, err := c.repo.GetAssignment(ctx, t.HotelID, t.RoomProductID, t.RatePlanID)
			if err != nil {
				continue
			}
			a = other
		}
		out = append(out, Node{Assignment: a, Range: n.Range, Depth: n.Depth})
	}
	return out
}

func (c *Controller) skipNode(err error, n Node, what string) {
	ev := c.log.Warn()
	if !errors.Is(err, domain.ErrNotFound) {
		ev = c.log.Warn().Err(err)
	}
	observability.ObserveCascadeSkip("missing")
	ev.Str("what", what).
		Int64("room_product", n.Assignment.RoomProductID).
		Int64("rate_plan", n.Assignment.RatePlanID).
		Str("method", string(n.Assignment.Method)).
		Msg("cascade node skipped")
}

// enqueuePushTasks is the PushExternal phase: every affected tuple whose
// rate plan exports to the PMS gets a deduplicated task in the queue.
func (c *Controller) enqueuePushTasks(ctx context.Context, run *Run) error {
	if c.queue == nil {
		return nil
	}
	rng := run.Range()
	for _, t := range run.affectedTuples() {
		plan, err := c.repo.GetRatePlan(ctx, t.RatePlanID)
		if err != nil || plan.PMSRateCode == "" {
			continue
		}
		task := domain.PushTask{
			HotelID:       t.HotelID,
			RoomProductID: t.RoomProductID,
			RatePlanID:    t.RatePlanID,
			From:          rng.From,
			To:            rng.To,
			EnqueuedAt:    time.Now().UTC(),
		}
		if err := c.queue.Set(ctx, task); err != nil {
			return err
		}
		observability.ObservePMSPush("queued")
	}
	return nil
}
