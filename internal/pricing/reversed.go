package pricing

import (
	"context"

	"ratecascade/internal/domain"
)

type reversed struct{}

func (reversed) Method() domain.PricingMethod { return domain.MethodReversed }

// Compute redistributes an authoritative MRFC price onto this RFC:
// (target − feature component) / shared unit quantity. The target is
// whichever related MRFC got a PMS or POSITIONING price earlier in the
// current run; dates without a target are skipped.
func (reversed) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	t := in.tuple()
	rels, err := in.Lookup.Related(ctx, in.Product.HotelID, in.Product.ID)
	if err != nil {
		return nil, err
	}

	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		target, qty, ok := 0.0, 0, false
		for _, rel := range rels {
			if rel.Product.Type != domain.MRFC {
				continue
			}
			p, found := in.Lookup.AuthoritativeTarget(ctx, domain.TupleRef{
				HotelID:       in.Product.HotelID,
				RoomProductID: rel.Product.ID,
				RatePlanID:    in.Plan.ID,
			}, d)
			if found {
				target, qty, ok = p, rel.UnitQuantity, true
				break
			}
		}
		if !ok || qty <= 0 {
			continue
		}

		comp, err := featureComponent(ctx, in.Lookup, t.HotelID, t.RoomProductID, d)
		if err != nil {
			return nil, err
		}
		base := (target - comp) / float64(qty)
		base = domain.ApplyAdjustment(base, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
		row, err := finish(ctx, in, t, d, base, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
