package pricing

import (
	"context"
	"math"
	"time"

	"ratecascade/internal/domain"
)

// round4 keeps 4 internal decimal places, ties away from zero.
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func applyRounding(v float64, mode domain.RoundingMode) float64 {
	switch mode {
	case domain.RoundNearestWhole:
		return math.Round(v)
	case domain.RoundUp:
		return math.Ceil(v)
	case domain.RoundDown:
		return math.Floor(v)
	default:
		return round4(v)
	}
}

// finish is the shared tail of every calculator: fold in the per-date rate
// plan adjustment, round the pre-tax amount per the plan's mode, then
// gross = net × (1 + Σ tax rates).
func finish(ctx context.Context, in Input, t domain.TupleRef, date time.Time, base, featureAdj float64) (domain.DailyPrice, error) {
	planAdj := 0.0
	if adj, err := in.Lookup.PlanAdjustment(ctx, t.HotelID, in.Plan.ID, date); err != nil {
		return domain.DailyPrice{}, err
	} else if adj != nil {
		planAdj = domain.ApplyAdjustment(base, adj.Value, adj.Unit) - base
	}

	net := applyRounding(round4(base+planAdj), in.Plan.RoundingMode)

	taxes, err := in.Lookup.Taxes(ctx, t.HotelID, in.Plan.ID, date)
	if err != nil {
		return domain.DailyPrice{}, err
	}
	var rateSum float64
	for _, ts := range taxes {
		rateSum += ts.Rate
	}
	gross := round4(net * (1 + rateSum))

	return domain.DailyPrice{
		HotelID:            t.HotelID,
		RoomProductID:      t.RoomProductID,
		RatePlanID:         t.RatePlanID,
		Date:               domain.Day(date),
		BasePrice:          round4(base),
		FeatureAdjustment:  round4(featureAdj),
		RatePlanAdjustment: round4(planAdj),
		NetPrice:           net,
		GrossPrice:         gross,
		TaxAmount:          round4(gross - net),
	}, nil
}
