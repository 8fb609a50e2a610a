package pricing

import (
	"context"
	"time"

	"ratecascade/internal/domain"
)

// relatedBasePrices collects base prices of products related to the input's
// product (shared physical units) that have a positive price and available
// inventory on the date. Used by AVERAGE, COMBINED and POSITIONING.
func relatedBasePrices(ctx context.Context, in Input, date time.Time, onlyType domain.RoomProductType) (avail, all []float64, err error) {
	rels, err := in.Lookup.Related(ctx, in.Product.HotelID, in.Product.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range rels {
		if onlyType != "" && rel.Product.Type != onlyType {
			continue
		}
		price, ok := in.Lookup.BasePrice(ctx, domain.TupleRef{
			HotelID:       in.Product.HotelID,
			RoomProductID: rel.Product.ID,
			RatePlanID:    in.Plan.ID,
		}, date)
		if !ok || price <= 0 {
			continue
		}
		all = append(all, price)
		a, _, err := in.Lookup.Available(ctx, in.Product.HotelID, rel.Product.ID, date)
		if err != nil {
			return nil, nil, err
		}
		if a > 0 {
			avail = append(avail, price)
		}
	}
	return avail, all, nil
}

type average struct{}

func (average) Method() domain.PricingMethod { return domain.MethodAverage }

func (average) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	return relatedFold(ctx, in, func(ps []float64) float64 {
		var sum float64
		for _, p := range ps {
			sum += p
		}
		return sum / float64(len(ps))
	})
}

type combined struct{}

func (combined) Method() domain.PricingMethod { return domain.MethodCombined }

func (combined) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	return relatedFold(ctx, in, func(ps []float64) float64 {
		var sum float64
		for _, p := range ps {
			sum += p
		}
		return sum
	})
}

// relatedFold folds the available related prices per date; dates with an
// empty related set are skipped.
func relatedFold(ctx context.Context, in Input, fold func([]float64) float64) ([]domain.DailyPrice, error) {
	t := in.tuple()
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		ps, _, err := relatedBasePrices(ctx, in, d, "")
		if err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			continue
		}
		base := domain.ApplyAdjustment(fold(ps), in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
		row, err := finish(ctx, in, t, d, base, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
