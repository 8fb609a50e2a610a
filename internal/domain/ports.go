package domain

import (
	"context"
	"fmt"
	"time"
)

// PriceRepository is the persistence gateway for configuration and engine
// output. Implementations must make UpsertDailyPrices atomic per call:
// a failed batch reports the error to the caller rather than dropping rows.
type PriceRepository interface {
	// Configuration
	UpsertAssignment(ctx context.Context, a PricingAssignment) error
	GetAssignment(ctx context.Context, hotelID, roomProductID, ratePlanID int64) (PricingAssignment, error)
	ListAssignments(ctx context.Context, hotelID int64) ([]PricingAssignment, error)
	ListAssignmentsByRatePlan(ctx context.Context, hotelID, ratePlanID int64) ([]PricingAssignment, error)
	ListAssignmentsTargeting(ctx context.Context, hotelID, targetRoomProductID int64) ([]PricingAssignment, error)

	// Entities
	GetRoomProduct(ctx context.Context, id int64) (RoomProduct, error)
	GetRoomProductByCode(ctx context.Context, hotelID int64, code string) (RoomProduct, error)
	GetRatePlan(ctx context.Context, id int64) (RatePlan, error)
	GetRatePlanByPMSCode(ctx context.Context, hotelID int64, code string) (RatePlan, error)
	ListChildRatePlans(ctx context.Context, hotelID, parentRatePlanID int64) ([]RatePlan, error)
	ListRelated(ctx context.Context, hotelID, roomProductID int64) ([]RelatedProduct, error)

	// Engine output
	UpsertDailyPrices(ctx context.Context, rows []DailyPrice) error
	GetDailyPrices(ctx context.Context, hotelID, roomProductID, ratePlanID int64, rng DateRange) ([]DailyPrice, error)
}

// Providers owned by separate subsystems; read-only to the engine.

type InventoryProvider interface {
	// AvailableUnits reports free and total physical units for a room
	// product on a date. capacity == 0 means the product sells no units
	// that day.
	AvailableUnits(ctx context.Context, hotelID, roomProductID int64, date time.Time) (available, capacity int, err error)
}

type FeatureRateProvider interface {
	FeatureRates(ctx context.Context, hotelID, roomProductID int64, date time.Time) ([]FeatureRate, error)
}

type AdjustmentProvider interface {
	// RatePlanAdjustment returns the per-date override for a rate plan,
	// or nil when none is configured.
	RatePlanAdjustment(ctx context.Context, hotelID, ratePlanID int64, date time.Time) (*Adjustment, error)
}

type TaxProvider interface {
	TaxSettings(ctx context.Context, hotelID, ratePlanID int64, date time.Time) ([]TaxSetting, error)
}

// PMSGateway talks to the external property-management system. PushPrices
// returns ErrRateLimited when the PMS answers 429; callers defer the push
// through the task queue instead of retrying inline.
type PMSGateway interface {
	PullPrices(ctx context.Context, hotelID int64, rateCode string, rng DateRange) ([]PMSPrice, error)
	PushPrices(ctx context.Context, hotelID int64, rateCode string, prices []PMSPrice) error
}

// PushTask is one pending PMS push, deduplicated on its Key.
type PushTask struct {
	HotelID       int64     `json:"hotelId"`
	RoomProductID int64     `json:"roomProductId"`
	RatePlanID    int64     `json:"ratePlanId"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
}

// Key is the dedup identity of a push task. Date ranges are widened on
// overwrite by the queue adapter, so the key deliberately excludes them.
func (t PushTask) Key() string {
	return fmt.Sprintf("%d:%d:%d", t.HotelID, t.RatePlanID, t.RoomProductID)
}

// TaskQueue stores pending PMS pushes. Set overwrites any task with the
// same key and refreshes its recency.
type TaskQueue interface {
	Set(ctx context.Context, t PushTask) error
	Get(ctx context.Context, key string) (PushTask, bool, error)
	Delete(ctx context.Context, key string) error
	ListRecent(ctx context.Context, limit int) ([]PushTask, error)
}

// SnapshotCache remembers the last written base prices per tuple so the
// redundancy filter can drop no-op writes without a database round trip.
type SnapshotCache interface {
	GetBasePrices(ctx context.Context, t TupleRef, rng DateRange) (map[string]float64, bool, error)
	SetBasePrices(ctx context.Context, t TupleRef, rng DateRange, prices map[string]float64) error
}
