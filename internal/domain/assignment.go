package domain

import "fmt"

// PricingAssignment binds a pricing method to one (hotel, room-product,
// rate-plan) tuple. The method determines which optional fields are
// required; Validate rejects violating assignments before they are
// persisted.
type PricingAssignment struct {
	HotelID             int64
	RoomProductID       int64
	RatePlanID          int64
	Method              PricingMethod
	AdjustmentValue     float64
	AdjustmentUnit      AdjustmentUnit
	TargetRoomProductID *int64
	TargetRatePlanID    *int64
	PMSCode             *string
	FixedPrice          *float64
}

func (a PricingAssignment) Tuple() TupleRef {
	return TupleRef{HotelID: a.HotelID, RoomProductID: a.RoomProductID, RatePlanID: a.RatePlanID}
}

func (a PricingAssignment) Validate() error {
	if a.HotelID == 0 || a.RoomProductID == 0 || a.RatePlanID == 0 {
		return fmt.Errorf("%w: hotel, room product and rate plan are required", ErrInvalidAssignment)
	}
	switch a.Method {
	case MethodFeatureBased, MethodAverage, MethodCombined, MethodReversed,
		MethodAttribute, MethodPositioning:
		// no extra fields
	case MethodFixed:
		if a.FixedPrice == nil {
			return fmt.Errorf("%w: FIXED requires a fixed price", ErrInvalidAssignment)
		}
	case MethodLink:
		if a.TargetRoomProductID == nil {
			return fmt.Errorf("%w: LINK requires a target room product", ErrInvalidAssignment)
		}
	case MethodDerived:
		if a.TargetRatePlanID == nil {
			return fmt.Errorf("%w: DERIVED requires a target rate plan", ErrInvalidAssignment)
		}
	case MethodPMS:
		if a.PMSCode == nil || *a.PMSCode == "" {
			return fmt.Errorf("%w: PMS requires an external rate code", ErrInvalidAssignment)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidAssignment, a.Method)
	}
	switch a.AdjustmentUnit {
	case "", UnitFixed, UnitPercentage:
	default:
		return fmt.Errorf("%w: unknown adjustment unit %q", ErrInvalidAssignment, a.AdjustmentUnit)
	}
	return nil
}

// ApplyAdjustment applies a FIXED or PERCENTAGE delta to v. An empty unit
// behaves as FIXED with value 0.
func ApplyAdjustment(v, value float64, unit AdjustmentUnit) float64 {
	if unit == UnitPercentage {
		return v * (1 + value/100)
	}
	return v + value
}
