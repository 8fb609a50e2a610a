package pricing

import (
	"context"
	"time"

	"ratecascade/internal/domain"
)

type featureBased struct{}

func (featureBased) Method() domain.PricingMethod { return domain.MethodFeatureBased }

// Compute sums (dailyOverride ?? baseRate) × quantity over the product's
// assigned features, then applies the assignment's adjustment.
func (featureBased) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	t := in.tuple()
	rows := make([]domain.DailyPrice, 0, len(in.Dates))
	for _, d := range in.Dates {
		sum, err := featureComponent(ctx, in.Lookup, t.HotelID, t.RoomProductID, d)
		if err != nil {
			return nil, err
		}
		base := domain.ApplyAdjustment(sum, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
		row, err := finish(ctx, in, t, d, base, base-sum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// featureComponent is the raw feature sum for one product/date, before any
// adjustment. REVERSED subtracts it back out when redistributing.
func featureComponent(ctx context.Context, lk Lookup, hotelID, roomProductID int64, date time.Time) (float64, error) {
	rates, err := lk.FeatureRates(ctx, hotelID, roomProductID, date)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, fr := range rates {
		r := fr.BaseRate
		if fr.DailyOverride != nil {
			r = *fr.DailyOverride
		}
		sum += r * float64(fr.Quantity)
	}
	return sum, nil
}

type fixed struct{}

func (fixed) Method() domain.PricingMethod { return domain.MethodFixed }

func (fixed) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	if in.Assignment.FixedPrice == nil {
		return nil, domain.ErrInvalidAssignment
	}
	t := in.tuple()
	base := domain.ApplyAdjustment(*in.Assignment.FixedPrice, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
	rows := make([]domain.DailyPrice, 0, len(in.Dates))
	for _, d := range in.Dates {
		row, err := finish(ctx, in, t, d, base, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
