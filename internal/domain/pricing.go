package domain

import "time"

type RoomProductType string

const (
	RFC  RoomProductType = "RFC"
	MRFC RoomProductType = "MRFC"
	ERFC RoomProductType = "ERFC"
)

type PricingMethod string

const (
	MethodFeatureBased PricingMethod = "FEATURE_BASED"
	MethodAverage      PricingMethod = "AVERAGE"
	MethodCombined     PricingMethod = "COMBINED"
	MethodFixed        PricingMethod = "FIXED"
	MethodPMS          PricingMethod = "PMS"
	MethodLink         PricingMethod = "LINK"
	MethodDerived      PricingMethod = "DERIVED"
	MethodReversed     PricingMethod = "REVERSED"
	MethodAttribute    PricingMethod = "ATTRIBUTE"
	MethodPositioning  PricingMethod = "POSITIONING"
)

type AdjustmentUnit string

const (
	UnitFixed      AdjustmentUnit = "FIXED"
	UnitPercentage AdjustmentUnit = "PERCENTAGE"
)

type RoundingMode string

const (
	RoundNone         RoundingMode = "NONE"
	RoundNearestWhole RoundingMode = "NEAREST_WHOLE"
	RoundUp           RoundingMode = "UP"
	RoundDown         RoundingMode = "DOWN"
)

type RoomProduct struct {
	ID      int64
	HotelID int64
	Code    string
	Type    RoomProductType
	Status  string
}

// RelatedProduct is a room product sharing physical units with another one.
// UnitQuantity is the number of shared units, which REVERSED uses as the
// divisor when redistributing an MRFC price onto its RFCs.
type RelatedProduct struct {
	Product      RoomProduct
	UnitQuantity int
}

// RatePlan carries the rate-plan dependency axis: a plan with a non-nil
// ParentRatePlanID prices as a delta on its parent (DERIVED edges).
type RatePlan struct {
	ID                     int64
	HotelID                int64
	Code                   string
	AttributeModeEnabled   bool
	PositioningModeEnabled bool
	RoundingMode           RoundingMode
	PMSRateCode            string
	ParentRatePlanID       *int64
	AdjustmentValue        float64
	AdjustmentUnit         AdjustmentUnit
}

// DailyPrice is engine output only; it is never edited by hand and is
// always derivable by rerunning the cascade from its inputs.
type DailyPrice struct {
	HotelID            int64
	RoomProductID      int64
	RatePlanID         int64
	Date               time.Time
	BasePrice          float64
	FeatureAdjustment  float64
	RatePlanAdjustment float64
	NetPrice           float64
	GrossPrice         float64
	TaxAmount          float64
}

type FeatureRate struct {
	FeatureID     int64
	BaseRate      float64
	Quantity      int
	DailyOverride *float64
}

// Adjustment is a per-date override supplied by the rate-plan adjustment
// subsystem; read-only to the engine.
type Adjustment struct {
	Value float64
	Unit  AdjustmentUnit
}

type TaxSetting struct {
	Code string
	Rate float64
}

// PMSPrice is one per-date price as exchanged with the external PMS.
type PMSPrice struct {
	Date            time.Time
	GrossPrice      float64
	NetPrice        float64
	RoomProductCode string
}

// TupleRef identifies one (room-product, rate-plan) pair of a hotel.
type TupleRef struct {
	HotelID       int64
	RoomProductID int64
	RatePlanID    int64
}

// AffectedResult reports what a cascade run touched.
type AffectedResult struct {
	Rows   int
	Tuples []TupleRef
}
