package pricing

import (
	"context"
	"time"

	"ratecascade/internal/domain"
)

type attribute struct{}

func (attribute) Method() domain.PricingMethod { return domain.MethodAttribute }

// Compute applies the cross-floor attribute logic. On an RFC: raise its
// price to the maximum among related, inventory-available MRFCs when it is
// below that maximum; otherwise emit nothing (no update). On an MRFC: emit
// a row per related RFC with the RFC price adjusted by the assignment and
// floored at the MRFC's own price.
func (attribute) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	if !in.Plan.AttributeModeEnabled {
		return nil, nil
	}
	if in.Product.Type == domain.MRFC {
		return attributeFromMRFC(ctx, in)
	}
	return attributeOnRFC(ctx, in)
}

func attributeOnRFC(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	t := in.tuple()
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		own, ok := in.Lookup.BasePrice(ctx, t, d)
		if !ok {
			continue
		}
		maxM, ok, err := maxRelatedMRFC(ctx, in, d)
		if err != nil {
			return nil, err
		}
		if !ok || own >= maxM {
			continue
		}
		row, err := finish(ctx, in, t, d, maxM, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func attributeFromMRFC(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	rels, err := in.Lookup.Related(ctx, in.Product.HotelID, in.Product.ID)
	if err != nil {
		return nil, err
	}
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		own, ok := in.Lookup.BasePrice(ctx, in.tuple(), d)
		if !ok {
			continue
		}
		for _, rel := range rels {
			if rel.Product.Type != domain.RFC {
				continue
			}
			rt := domain.TupleRef{HotelID: in.Product.HotelID, RoomProductID: rel.Product.ID, RatePlanID: in.Plan.ID}
			price, ok := in.Lookup.BasePrice(ctx, rt, d)
			if !ok {
				continue
			}
			adjusted := domain.ApplyAdjustment(price, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
			if adjusted < own {
				adjusted = own
			}
			row, err := finish(ctx, in, rt, d, adjusted, 0)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func maxRelatedMRFC(ctx context.Context, in Input, d time.Time) (float64, bool, error) {
	rels, err := in.Lookup.Related(ctx, in.Product.HotelID, in.Product.ID)
	if err != nil {
		return 0, false, err
	}
	var max float64
	found := false
	for _, rel := range rels {
		if rel.Product.Type != domain.MRFC {
			continue
		}
		a, _, err := in.Lookup.Available(ctx, in.Product.HotelID, rel.Product.ID, d)
		if err != nil {
			return 0, false, err
		}
		if a <= 0 {
			continue
		}
		price, ok := in.Lookup.BasePrice(ctx, domain.TupleRef{
			HotelID:       in.Product.HotelID,
			RoomProductID: rel.Product.ID,
			RatePlanID:    in.Plan.ID,
		}, d)
		if !ok {
			continue
		}
		if !found || price > max {
			max, found = price, true
		}
	}
	return max, found, nil
}
