package pricing

import (
	"context"
	"math"
	"sort"
	"time"

	"ratecascade/internal/domain"
)

type positioning struct{}

func (positioning) Method() domain.PricingMethod { return domain.MethodPositioning }

// Compute prices an MRFC from an occupancy-weighted percentile of its
// related RFC prices: sort ascending, take the first ceil(occ×n) and
// average them; occ=0 degenerates to the lowest price. When no related RFC
// has inventory left the method falls back to the maximum related price
// (the tuple still needs a sell price while everything is booked out).
func (positioning) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	if !in.Plan.PositioningModeEnabled {
		return nil, nil
	}
	t := in.tuple()
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		avail, all, err := relatedBasePrices(ctx, in, d, domain.RFC)
		if err != nil {
			return nil, err
		}

		var base float64
		switch {
		case len(avail) > 0:
			occ, err := relatedOccupancy(ctx, in, d)
			if err != nil {
				return nil, err
			}
			sort.Float64s(avail)
			if occ == 0 {
				base = avail[0]
			} else {
				cutoff := int(math.Ceil(occ * float64(len(avail))))
				if cutoff > len(avail) {
					cutoff = len(avail)
				}
				var sum float64
				for _, p := range avail[:cutoff] {
					sum += p
				}
				base = sum / float64(cutoff)
			}
		case len(all) > 0:
			// sold out: anchor on the most expensive related RFC
			base = all[0]
			for _, p := range all[1:] {
				if p > base {
					base = p
				}
			}
		default:
			continue
		}

		base = domain.ApplyAdjustment(base, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
		row, err := finish(ctx, in, t, d, base, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// relatedOccupancy aggregates (capacity − available) / capacity over the
// related RFC set, clamped to [0,1]. Zero total capacity counts as 0.
func relatedOccupancy(ctx context.Context, in Input, date time.Time) (float64, error) {
	rels, err := in.Lookup.Related(ctx, in.Product.HotelID, in.Product.ID)
	if err != nil {
		return 0, err
	}
	var avail, total int
	for _, rel := range rels {
		if rel.Product.Type != domain.RFC {
			continue
		}
		a, c, err := in.Lookup.Available(ctx, in.Product.HotelID, rel.Product.ID, date)
		if err != nil {
			return 0, err
		}
		avail += a
		total += c
	}
	if total == 0 {
		return 0, nil
	}
	occ := float64(total-avail) / float64(total)
	if occ < 0 {
		occ = 0
	}
	if occ > 1 {
		occ = 1
	}
	return occ, nil
}
