package pricing

import (
	"context"

	"ratecascade/internal/domain"
)

type pms struct{}

func (pms) Method() domain.PricingMethod { return domain.MethodPMS }

// Compute treats the externally supplied per-date price as ground truth.
// Net is preferred; when the PMS only sends gross, net is derived by
// backing out the configured taxes. The controller registers the result as
// an authoritative target for the REVERSED phase.
func (pms) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	t := in.tuple()
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		ext, ok := in.Lookup.ExternalPrice(ctx, t, d)
		if !ok {
			continue
		}
		net := ext.NetPrice
		if net == 0 && ext.GrossPrice != 0 {
			taxes, err := in.Lookup.Taxes(ctx, t.HotelID, in.Plan.ID, d)
			if err != nil {
				return nil, err
			}
			var rateSum float64
			for _, ts := range taxes {
				rateSum += ts.Rate
			}
			net = ext.GrossPrice / (1 + rateSum)
		}
		base := domain.ApplyAdjustment(net, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
		row, err := finish(ctx, in, t, d, base, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
