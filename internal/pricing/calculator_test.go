package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"ratecascade/internal/domain"
)

var day = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func priceKey(t domain.TupleRef, d time.Time) string {
	return fmt.Sprintf("%d:%d:%d:%s", t.HotelID, t.RoomProductID, t.RatePlanID, domain.DayKey(d))
}

type fakeLookup struct {
	base     map[string]float64
	net      map[string]float64
	targets  map[string]float64
	external map[string]domain.PMSPrice
	related  map[int64][]domain.RelatedProduct
	avail    map[int64][2]int
	features map[int64][]domain.FeatureRate
	planAdj  map[int64]*domain.Adjustment
	taxes    []domain.TaxSetting
}

func (f *fakeLookup) BasePrice(_ context.Context, t domain.TupleRef, d time.Time) (float64, bool) {
	v, ok := f.base[priceKey(t, d)]
	return v, ok
}

func (f *fakeLookup) NetPrice(_ context.Context, t domain.TupleRef, d time.Time) (float64, bool) {
	v, ok := f.net[priceKey(t, d)]
	return v, ok
}

func (f *fakeLookup) AuthoritativeTarget(_ context.Context, t domain.TupleRef, d time.Time) (float64, bool) {
	v, ok := f.targets[priceKey(t, d)]
	return v, ok
}

func (f *fakeLookup) ExternalPrice(_ context.Context, t domain.TupleRef, d time.Time) (domain.PMSPrice, bool) {
	v, ok := f.external[priceKey(t, d)]
	return v, ok
}

func (f *fakeLookup) Related(_ context.Context, _, roomProductID int64) ([]domain.RelatedProduct, error) {
	return f.related[roomProductID], nil
}

func (f *fakeLookup) Available(_ context.Context, _, roomProductID int64, _ time.Time) (int, int, error) {
	ac := f.avail[roomProductID]
	return ac[0], ac[1], nil
}

func (f *fakeLookup) FeatureRates(_ context.Context, _, roomProductID int64, _ time.Time) ([]domain.FeatureRate, error) {
	return f.features[roomProductID], nil
}

func (f *fakeLookup) PlanAdjustment(_ context.Context, _, ratePlanID int64, _ time.Time) (*domain.Adjustment, error) {
	return f.planAdj[ratePlanID], nil
}

func (f *fakeLookup) Taxes(_ context.Context, _, _ int64, _ time.Time) ([]domain.TaxSetting, error) {
	return f.taxes, nil
}

func input(lk *fakeLookup, method domain.PricingMethod) Input {
	return Input{
		Product: domain.RoomProduct{ID: 10, HotelID: 1, Code: "STD", Type: domain.RFC, Status: "active"},
		Plan:    domain.RatePlan{ID: 5, HotelID: 1, Code: "BAR", RoundingMode: domain.RoundNone},
		Assignment: domain.PricingAssignment{
			HotelID: 1, RoomProductID: 10, RatePlanID: 5, Method: method,
		},
		Dates:  []time.Time{day},
		Lookup: lk,
	}
}

func mustCompute(t *testing.T, c Calculator, in Input) []domain.DailyPrice {
	t.Helper()
	rows, err := c.Compute(context.Background(), in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return rows
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFeatureBasedSumsFeatures(t *testing.T) {
	override := 30.0
	lk := &fakeLookup{
		features: map[int64][]domain.FeatureRate{
			10: {
				{FeatureID: 1, BaseRate: 40, Quantity: 2},
				{FeatureID: 2, BaseRate: 25, Quantity: 1, DailyOverride: &override},
			},
		},
		taxes: []domain.TaxSetting{{Code: "VAT", Rate: 0.1}},
	}
	in := input(lk, domain.MethodFeatureBased)
	in.Assignment.AdjustmentValue = 10
	in.Assignment.AdjustmentUnit = domain.UnitFixed

	rows := mustCompute(t, featureBased{}, in)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	// 40×2 + 30×1 = 110, +10 fixed = 120
	row := rows[0]
	if !near(row.BasePrice, 120) {
		t.Errorf("base = %v, want 120", row.BasePrice)
	}
	if !near(row.FeatureAdjustment, 10) {
		t.Errorf("feature adjustment = %v, want 10", row.FeatureAdjustment)
	}
	if !near(row.NetPrice, 120) || !near(row.GrossPrice, 132) {
		t.Errorf("net/gross = %v/%v, want 120/132", row.NetPrice, row.GrossPrice)
	}
	if !near(row.TaxAmount, 12) {
		t.Errorf("tax = %v, want 12", row.TaxAmount)
	}
}

func TestFeatureBasedDeterministic(t *testing.T) {
	lk := &fakeLookup{
		features: map[int64][]domain.FeatureRate{10: {{FeatureID: 1, BaseRate: 33.33, Quantity: 3}}},
	}
	in := input(lk, domain.MethodFeatureBased)
	first := mustCompute(t, featureBased{}, in)
	second := mustCompute(t, featureBased{}, in)
	if first[0] != second[0] {
		t.Errorf("same inputs produced different rows: %+v vs %+v", first[0], second[0])
	}
}

func TestFixedRequiresPrice(t *testing.T) {
	in := input(&fakeLookup{}, domain.MethodFixed)
	if _, err := (fixed{}).Compute(context.Background(), in); !errors.Is(err, domain.ErrInvalidAssignment) {
		t.Fatalf("err = %v, want ErrInvalidAssignment", err)
	}
}

func TestRoundingModes(t *testing.T) {
	price := 99.4
	for _, tc := range []struct {
		mode domain.RoundingMode
		want float64
	}{
		{domain.RoundNone, 99.4},
		{domain.RoundNearestWhole, 99},
		{domain.RoundUp, 100},
		{domain.RoundDown, 99},
	} {
		in := input(&fakeLookup{}, domain.MethodFixed)
		in.Plan.RoundingMode = tc.mode
		in.Assignment.FixedPrice = &price
		rows := mustCompute(t, fixed{}, in)
		if !near(rows[0].NetPrice, tc.want) {
			t.Errorf("%s: net = %v, want %v", tc.mode, rows[0].NetPrice, tc.want)
		}
	}
}

func TestPlanAdjustmentFoldsIntoNet(t *testing.T) {
	price := 100.0
	lk := &fakeLookup{
		planAdj: map[int64]*domain.Adjustment{5: {Value: 10, Unit: domain.UnitPercentage}},
	}
	in := input(lk, domain.MethodFixed)
	in.Assignment.FixedPrice = &price

	rows := mustCompute(t, fixed{}, in)
	row := rows[0]
	if !near(row.RatePlanAdjustment, 10) {
		t.Errorf("plan adjustment = %v, want 10", row.RatePlanAdjustment)
	}
	if !near(row.NetPrice, 110) {
		t.Errorf("net = %v, want 110", row.NetPrice)
	}
	if !near(row.BasePrice, 100) {
		t.Errorf("base = %v, want 100 (adjustment must not leak into base)", row.BasePrice)
	}
}

func relatedRFCs(prices map[int64]float64) (map[int64][]domain.RelatedProduct, map[string]float64) {
	var rels []domain.RelatedProduct
	base := make(map[string]float64)
	for id, p := range prices {
		rels = append(rels, domain.RelatedProduct{
			Product:      domain.RoomProduct{ID: id, HotelID: 1, Type: domain.RFC, Status: "active"},
			UnitQuantity: 1,
		})
		base[priceKey(domain.TupleRef{HotelID: 1, RoomProductID: id, RatePlanID: 5}, day)] = p
	}
	return map[int64][]domain.RelatedProduct{10: rels}, base
}

func TestAverageOverAvailableRelated(t *testing.T) {
	rels, base := relatedRFCs(map[int64]float64{21: 100, 22: 200, 23: 300})
	lk := &fakeLookup{
		related: rels,
		base:    base,
		// 23 is sold out and must be excluded
		avail: map[int64][2]int{21: {3, 5}, 22: {1, 5}, 23: {0, 5}},
	}
	rows := mustCompute(t, average{}, input(lk, domain.MethodAverage))
	if len(rows) != 1 || !near(rows[0].BasePrice, 150) {
		t.Fatalf("rows = %+v, want one row with base 150", rows)
	}
}

func TestCombinedSumsRelated(t *testing.T) {
	rels, base := relatedRFCs(map[int64]float64{21: 100, 22: 200})
	lk := &fakeLookup{
		related: rels,
		base:    base,
		avail:   map[int64][2]int{21: {1, 5}, 22: {1, 5}},
	}
	rows := mustCompute(t, combined{}, input(lk, domain.MethodCombined))
	if len(rows) != 1 || !near(rows[0].BasePrice, 300) {
		t.Fatalf("rows = %+v, want one row with base 300", rows)
	}
}

func TestAverageSkipsDateWithoutRelatedPrices(t *testing.T) {
	lk := &fakeLookup{related: map[int64][]domain.RelatedProduct{10: nil}}
	rows := mustCompute(t, average{}, input(lk, domain.MethodAverage))
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want none for an empty related set", len(rows))
	}
}

func TestPositioningOccupancyCutoff(t *testing.T) {
	rels, base := relatedRFCs(map[int64]float64{21: 150, 22: 100, 23: 120})
	lk := &fakeLookup{
		related: rels,
		base:    base,
		// 15 of 30 booked: occupancy 0.5, cutoff ceil(0.5×3)=2
		avail: map[int64][2]int{21: {5, 10}, 22: {5, 10}, 23: {5, 10}},
	}
	in := input(lk, domain.MethodPositioning)
	in.Product.Type = domain.MRFC
	in.Plan.PositioningModeEnabled = true

	rows := mustCompute(t, positioning{}, in)
	if len(rows) != 1 || !near(rows[0].BasePrice, 110) {
		t.Fatalf("rows = %+v, want one row with base 110 (avg of two cheapest)", rows)
	}
}

func TestPositioningZeroOccupancyPicksLowest(t *testing.T) {
	rels, base := relatedRFCs(map[int64]float64{21: 150, 22: 100})
	lk := &fakeLookup{
		related: rels,
		base:    base,
		avail:   map[int64][2]int{21: {10, 10}, 22: {10, 10}},
	}
	in := input(lk, domain.MethodPositioning)
	in.Plan.PositioningModeEnabled = true

	rows := mustCompute(t, positioning{}, in)
	if len(rows) != 1 || !near(rows[0].BasePrice, 100) {
		t.Fatalf("rows = %+v, want one row with base 100", rows)
	}
}

func TestPositioningSoldOutFallsBackToMax(t *testing.T) {
	rels, base := relatedRFCs(map[int64]float64{21: 150, 22: 100, 23: 120})
	lk := &fakeLookup{
		related: rels,
		base:    base,
		avail:   map[int64][2]int{21: {0, 10}, 22: {0, 10}, 23: {0, 10}},
	}
	in := input(lk, domain.MethodPositioning)
	in.Plan.PositioningModeEnabled = true

	rows := mustCompute(t, positioning{}, in)
	if len(rows) != 1 || !near(rows[0].BasePrice, 150) {
		t.Fatalf("rows = %+v, want one row with base 150", rows)
	}
}

func TestPositioningDisabledEmitsNothing(t *testing.T) {
	in := input(&fakeLookup{}, domain.MethodPositioning)
	rows := mustCompute(t, positioning{}, in)
	if rows != nil {
		t.Fatalf("got %+v, want nil when positioning mode is off", rows)
	}
}

func TestAttributeRaisesRFCToRelatedMax(t *testing.T) {
	own := domain.TupleRef{HotelID: 1, RoomProductID: 10, RatePlanID: 5}
	m1 := domain.TupleRef{HotelID: 1, RoomProductID: 31, RatePlanID: 5}
	m2 := domain.TupleRef{HotelID: 1, RoomProductID: 32, RatePlanID: 5}
	lk := &fakeLookup{
		related: map[int64][]domain.RelatedProduct{10: {
			{Product: domain.RoomProduct{ID: 31, HotelID: 1, Type: domain.MRFC}},
			{Product: domain.RoomProduct{ID: 32, HotelID: 1, Type: domain.MRFC}},
		}},
		base: map[string]float64{
			priceKey(own, day): 90,
			priceKey(m1, day):  130,
			priceKey(m2, day):  125,
		},
		avail: map[int64][2]int{31: {2, 4}, 32: {1, 4}},
	}
	in := input(lk, domain.MethodAttribute)
	in.Plan.AttributeModeEnabled = true

	rows := mustCompute(t, attribute{}, in)
	if len(rows) != 1 || !near(rows[0].BasePrice, 130) {
		t.Fatalf("rows = %+v, want one row with base 130", rows)
	}

	// already at or above the max: no row
	lk.base[priceKey(own, day)] = 140
	rows = mustCompute(t, attribute{}, in)
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want none when own price already exceeds related max", len(rows))
	}
}

func TestAttributeFromMRFCEmitsRelatedRows(t *testing.T) {
	mrfc := domain.TupleRef{HotelID: 1, RoomProductID: 10, RatePlanID: 5}
	rfc := domain.TupleRef{HotelID: 1, RoomProductID: 21, RatePlanID: 5}
	lk := &fakeLookup{
		related: map[int64][]domain.RelatedProduct{10: {
			{Product: domain.RoomProduct{ID: 21, HotelID: 1, Type: domain.RFC}},
		}},
		base: map[string]float64{
			priceKey(mrfc, day): 100,
			priceKey(rfc, day):  90,
		},
	}
	in := input(lk, domain.MethodAttribute)
	in.Product.Type = domain.MRFC
	in.Plan.AttributeModeEnabled = true
	in.Assignment.AdjustmentValue = 20
	in.Assignment.AdjustmentUnit = domain.UnitFixed

	rows := mustCompute(t, attribute{}, in)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].RoomProductID != 21 {
		t.Errorf("row targets product %d, want the related RFC 21", rows[0].RoomProductID)
	}
	if !near(rows[0].BasePrice, 110) {
		t.Errorf("base = %v, want 110 (90 + 20)", rows[0].BasePrice)
	}

	// adjusted below the MRFC's own price: floored
	lk.base[priceKey(rfc, day)] = 70
	rows = mustCompute(t, attribute{}, in)
	if !near(rows[0].BasePrice, 100) {
		t.Errorf("base = %v, want floor at own price 100", rows[0].BasePrice)
	}
}

func TestReversedRedistributesTarget(t *testing.T) {
	mrfc := domain.TupleRef{HotelID: 1, RoomProductID: 31, RatePlanID: 5}
	lk := &fakeLookup{
		related: map[int64][]domain.RelatedProduct{10: {
			{Product: domain.RoomProduct{ID: 31, HotelID: 1, Type: domain.MRFC}, UnitQuantity: 2},
		}},
		targets:  map[string]float64{priceKey(mrfc, day): 200},
		features: map[int64][]domain.FeatureRate{10: {{FeatureID: 1, BaseRate: 20, Quantity: 1}}},
	}
	rows := mustCompute(t, reversed{}, input(lk, domain.MethodReversed))
	if len(rows) != 1 || !near(rows[0].BasePrice, 90) {
		t.Fatalf("rows = %+v, want one row with base 90 ((200-20)/2)", rows)
	}
}

func TestReversedSkipsDatesWithoutTarget(t *testing.T) {
	lk := &fakeLookup{
		related: map[int64][]domain.RelatedProduct{10: {
			{Product: domain.RoomProduct{ID: 31, HotelID: 1, Type: domain.MRFC}, UnitQuantity: 2},
		}},
	}
	rows := mustCompute(t, reversed{}, input(lk, domain.MethodReversed))
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want none without an authoritative target", len(rows))
	}
}

func TestLinkMirrorsTargetNet(t *testing.T) {
	target := domain.TupleRef{HotelID: 1, RoomProductID: 40, RatePlanID: 5}
	lk := &fakeLookup{net: map[string]float64{priceKey(target, day): 150}}
	in := input(lk, domain.MethodLink)
	targetID := int64(40)
	in.Assignment.TargetRoomProductID = &targetID
	in.Assignment.AdjustmentValue = 10
	in.Assignment.AdjustmentUnit = domain.UnitPercentage

	rows := mustCompute(t, link{}, in)
	if len(rows) != 1 || !near(rows[0].BasePrice, 165) {
		t.Fatalf("rows = %+v, want one row with base 165", rows)
	}
}

func TestDerivedFollowsParentPlan(t *testing.T) {
	parent := domain.TupleRef{HotelID: 1, RoomProductID: 10, RatePlanID: 3}
	lk := &fakeLookup{base: map[string]float64{priceKey(parent, day): 200}}
	in := input(lk, domain.MethodDerived)
	parentID := int64(3)
	in.Assignment.TargetRatePlanID = &parentID
	in.Assignment.AdjustmentValue = -25
	in.Assignment.AdjustmentUnit = domain.UnitFixed

	rows := mustCompute(t, derived{}, in)
	if len(rows) != 1 || !near(rows[0].BasePrice, 175) {
		t.Fatalf("rows = %+v, want one row with base 175", rows)
	}
}

func TestPMSBacksNetOutOfGross(t *testing.T) {
	own := domain.TupleRef{HotelID: 1, RoomProductID: 10, RatePlanID: 5}
	lk := &fakeLookup{
		external: map[string]domain.PMSPrice{priceKey(own, day): {Date: day, GrossPrice: 300}},
		taxes:    []domain.TaxSetting{{Code: "VAT", Rate: 0.2}},
	}
	rows := mustCompute(t, pms{}, input(lk, domain.MethodPMS))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !near(rows[0].BasePrice, 250) {
		t.Errorf("base = %v, want 250 (300 / 1.2)", rows[0].BasePrice)
	}
	if !near(rows[0].GrossPrice, 300) {
		t.Errorf("gross = %v, want the PMS gross 300 back", rows[0].GrossPrice)
	}
}

func TestRegistryCoversEveryMethod(t *testing.T) {
	r := NewRegistry()
	for _, m := range []domain.PricingMethod{
		domain.MethodFeatureBased, domain.MethodAverage, domain.MethodCombined,
		domain.MethodFixed, domain.MethodPMS, domain.MethodLink, domain.MethodDerived,
		domain.MethodReversed, domain.MethodAttribute, domain.MethodPositioning,
	} {
		c, ok := r.For(m)
		if !ok {
			t.Errorf("no calculator registered for %s", m)
			continue
		}
		if c.Method() != m {
			t.Errorf("calculator for %s reports %s", m, c.Method())
		}
	}
	if _, ok := r.For("BOGUS"); ok {
		t.Error("unknown method must not resolve")
	}
}
