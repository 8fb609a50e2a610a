package cascade

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"ratecascade/internal/domain"
)

// strategyMethods are the recompute methods that consume related products'
// prices and therefore react to any related tuple changing.
var strategyMethods = map[domain.PricingMethod]bool{
	domain.MethodAverage:     true,
	domain.MethodCombined:    true,
	domain.MethodPositioning: true,
	domain.MethodAttribute:   true,
}

// Resolver maps freshly written origin tuples to the dependent tuples of a
// phase. Resolution is deterministic for a fixed configuration snapshot:
// the same origins always yield the same dependents in the same order.
type Resolver struct {
	repo domain.PriceRepository
	log  zerolog.Logger
}

func NewResolver(repo domain.PriceRepository, log zerolog.Logger) *Resolver {
	return &Resolver{repo: repo, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, origins []Node, phase Phase) []Node {
	seen := make(map[string]struct{})
	var out []Node
	add := func(a domain.PricingAssignment, origin Node) {
		n := Node{Assignment: a, Range: origin.Range, Depth: origin.Depth + 1}
		k := n.visitKey()
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}

	for _, origin := range origins {
		switch phase {
		case PhaseReversed:
			r.reversedDeps(ctx, origin, add)
		case PhaseStrategy:
			r.strategyDeps(ctx, origin, add)
		case PhaseLinked:
			r.linkedDeps(ctx, origin, add)
		case PhaseDerived:
			r.derivedDeps(ctx, origin, add)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Assignment, out[j].Assignment
		if a.RatePlanID != b.RatePlanID {
			return a.RatePlanID < b.RatePlanID
		}
		return a.RoomProductID < b.RoomProductID
	})
	return out
}

// reversedDeps: an MRFC that received an authoritative price (PMS or
// POSITIONING) redistributes onto related RFCs carrying REVERSED.
func (r *Resolver) reversedDeps(ctx context.Context, origin Node, add func(domain.PricingAssignment, Node)) {
	m := origin.Assignment.Method
	if m != domain.MethodPMS && m != domain.MethodPositioning {
		return
	}
	product, err := r.repo.GetRoomProduct(ctx, origin.Assignment.RoomProductID)
	if err != nil {
		r.skip(err, origin, "reversed")
		return
	}
	if product.Type != domain.MRFC {
		return
	}
	for _, rel := range r.relatedOf(ctx, origin) {
		if rel.Product.Type != domain.RFC {
			continue
		}
		a, err := r.repo.GetAssignment(ctx, origin.Assignment.HotelID, rel.Product.ID, origin.Assignment.RatePlanID)
		if err != nil {
			r.skip(err, origin, "reversed")
			continue
		}
		if a.Method == domain.MethodReversed {
			add(a, origin)
		}
	}
}

// strategyDeps: related products whose method derives from the related
// set (AVERAGE/COMBINED/POSITIONING/ATTRIBUTE) recompute when any related
// tuple changes.
func (r *Resolver) strategyDeps(ctx context.Context, origin Node, add func(domain.PricingAssignment, Node)) {
	for _, rel := range r.relatedOf(ctx, origin) {
		a, err := r.repo.GetAssignment(ctx, origin.Assignment.HotelID, rel.Product.ID, origin.Assignment.RatePlanID)
		if err != nil {
			r.skip(err, origin, "strategy")
			continue
		}
		if strategyMethods[a.Method] {
			add(a, origin)
		}
	}
}

// linkedDeps: LINK assignments pointing at the changed product, same plan.
func (r *Resolver) linkedDeps(ctx context.Context, origin Node, add func(domain.PricingAssignment, Node)) {
	targeting, err := r.repo.ListAssignmentsTargeting(ctx, origin.Assignment.HotelID, origin.Assignment.RoomProductID)
	if err != nil {
		r.skip(err, origin, "linked")
		return
	}
	for _, a := range targeting {
		if a.Method == domain.MethodLink && a.RatePlanID == origin.Assignment.RatePlanID {
			add(a, origin)
		}
	}
}

// derivedDeps: child rate plans of the changed plan, same room product.
func (r *Resolver) derivedDeps(ctx context.Context, origin Node, add func(domain.PricingAssignment, Node)) {
	children, err := r.repo.ListChildRatePlans(ctx, origin.Assignment.HotelID, origin.Assignment.RatePlanID)
	if err != nil {
		r.skip(err, origin, "derived")
		return
	}
	for _, child := range children {
		a, err := r.repo.GetAssignment(ctx, origin.Assignment.HotelID, origin.Assignment.RoomProductID, child.ID)
		if err != nil {
			r.skip(err, origin, "derived")
			continue
		}
		if a.Method == domain.MethodDerived {
			add(a, origin)
		}
	}
}

func (r *Resolver) relatedOf(ctx context.Context, origin Node) []domain.RelatedProduct {
	rels, err := r.repo.ListRelated(ctx, origin.Assignment.HotelID, origin.Assignment.RoomProductID)
	if err != nil {
		r.skip(err, origin, "related")
		return nil
	}
	return rels
}

// skip logs a resolution miss; a missing entity drops that edge only.
func (r *Resolver) skip(err error, origin Node, phase string) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	r.log.Warn().Err(err).
		Str("phase", phase).
		Int64("room_product", origin.Assignment.RoomProductID).
		Int64("rate_plan", origin.Assignment.RatePlanID).
		Msg("dependency resolution skipped an edge")
}
