package pricing

import (
	"context"

	"ratecascade/internal/domain"
)

type link struct{}

func (link) Method() domain.PricingMethod { return domain.MethodLink }

// Compute mirrors the configured target room product's current net price
// (same rate plan) plus the local adjustment. One-way: the target never
// reads back from this tuple.
func (link) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	if in.Assignment.TargetRoomProductID == nil {
		return nil, domain.ErrInvalidAssignment
	}
	t := in.tuple()
	target := domain.TupleRef{
		HotelID:       t.HotelID,
		RoomProductID: *in.Assignment.TargetRoomProductID,
		RatePlanID:    t.RatePlanID,
	}
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		net, ok := in.Lookup.NetPrice(ctx, target, d)
		if !ok {
			continue
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

type derived struct{}

func (derived) Method() domain.PricingMethod { return domain.MethodDerived }

// Compute propagates the parent rate plan's price for the same room
// product, applying this tuple's FIXED/PERCENTAGE delta. This is the
// rate-plan-to-rate-plan axis, orthogonal to room-product methods.
func (derived) Compute(ctx context.Context, in Input) ([]domain.DailyPrice, error) {
	if in.Assignment.TargetRatePlanID == nil {
		return nil, domain.ErrInvalidAssignment
	}
	t := in.tuple()
	parent := domain.TupleRef{
		HotelID:       t.HotelID,
		RoomProductID: t.RoomProductID,
		RatePlanID:    *in.Assignment.TargetRatePlanID,
	}
	var rows []domain.DailyPrice
	for _, d := range in.Dates {
		price, ok := in.Lookup.BasePrice(ctx, parent, d)
		if !ok {
			continue
		}
		base := domain.ApplyAdjustment(price, in.Assignment.AdjustmentValue, in.Assignment.AdjustmentUnit)
		row, err := finish(ctx, in, t, d, base, 0)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
