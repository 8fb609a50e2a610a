// Package pricing holds one calculator per pricing method. Calculators are
// pure with respect to engine state: everything they need arrives through
// the Input's Lookup view, and they only return rows, never write.
package pricing

import (
	"context"
	"time"

	"ratecascade/internal/domain"
)

// Lookup is the calculator's read-only view over upstream values: prices
// already finalized in the current run, persisted snapshots, and the
// external providers. Implemented by the cascade run context.
type Lookup interface {
	// BasePrice returns the current base price of a tuple on a date,
	// preferring values computed earlier in the same run.
	BasePrice(ctx context.Context, t domain.TupleRef, date time.Time) (float64, bool)
	// NetPrice is the same with the post-rounding net amount (LINK mirrors net).
	NetPrice(ctx context.Context, t domain.TupleRef, date time.Time) (float64, bool)
	// AuthoritativeTarget reports a target price fixed for a tuple in this
	// run by PMS input or POSITIONING output; consumed by REVERSED.
	AuthoritativeTarget(ctx context.Context, t domain.TupleRef, date time.Time) (float64, bool)
	// ExternalPrice is the PMS-supplied price pulled for this run, if any.
	ExternalPrice(ctx context.Context, t domain.TupleRef, date time.Time) (domain.PMSPrice, bool)

	Related(ctx context.Context, hotelID, roomProductID int64) ([]domain.RelatedProduct, error)
	Available(ctx context.Context, hotelID, roomProductID int64, date time.Time) (available, capacity int, err error)
	FeatureRates(ctx context.Context, hotelID, roomProductID int64, date time.Time) ([]domain.FeatureRate, error)
	PlanAdjustment(ctx context.Context, hotelID, ratePlanID int64, date time.Time) (*domain.Adjustment, error)
	Taxes(ctx context.Context, hotelID, ratePlanID int64, date time.Time) ([]domain.TaxSetting, error)
}

// Input is one calculator invocation: a tuple, its configuration and the
// date window to produce.
type Input struct {
	Product    domain.RoomProduct
	Plan       domain.RatePlan
	Assignment domain.PricingAssignment
	Dates      []time.Time
	Lookup     Lookup
}

func (in Input) tuple() domain.TupleRef { return in.Assignment.Tuple() }

// Calculator turns upstream daily values into a local daily price series.
// A date with no computable value is skipped, not zero-filled. Rows may
// target other tuples than the input's own (REVERSED and the MRFC side of
// ATTRIBUTE redistribute onto related RFCs).
type Calculator interface {
	Method() domain.PricingMethod
	Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error)
}

type Registry struct {
	byMethod map[domain.PricingMethod]Calculator
}

func NewRegistry() *Registry {
	r := &Registry{byMethod: make(map[domain.PricingMethod]Calculator, 10)}
	for _, c := range []Calculator{
		featureBased{}, fixed{}, average{}, combined{}, positioning{},
		attribute{}, reversed{}, link{}, derived{}, pms{},
	} {
		r.byMethod[c.Method()] = c
	}
	return r
}

func (r *Registry) For(m domain.PricingMethod) (Calculator, bool) {
	c, ok := r.byMethod[m]
	return c, ok
}
