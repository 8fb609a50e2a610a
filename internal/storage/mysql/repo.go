package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ratecascade/internal/domain"
)

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertAssignment(ctx context.Context, a domain.PricingAssignment) error {
	_, err := r.db.ExecContext(ctx, upsertAssignmentSQL,
		a.HotelID,
		a.RoomProductID,
		a.RatePlanID,
		string(a.Method),
		a.AdjustmentValue,
		string(a.AdjustmentUnit),
		valInt64(a.TargetRoomProductID),
		valInt64(a.TargetRatePlanID),
		valStr(a.PMSCode),
		valF64(a.FixedPrice),
	)
	return err
}

func scanAssignment(row interface{ Scan(...any) error }) (domain.PricingAssignment, error) {
	var a domain.PricingAssignment
	var method, unit string
	var targetProduct, targetPlan sql.NullInt64
	var pmsCode sql.NullString
	var fixedPrice sql.NullFloat64
	if err := row.Scan(
		&a.HotelID, &a.RoomProductID, &a.RatePlanID, &method, &a.AdjustmentValue, &unit,
		&targetProduct, &targetPlan, &pmsCode, &fixedPrice,
	); err != nil {
		return domain.PricingAssignment{}, err
	}
	a.Method = domain.PricingMethod(method)
	a.AdjustmentUnit = domain.AdjustmentUnit(unit)
	if targetProduct.Valid {
		a.TargetRoomProductID = &targetProduct.Int64
	}
	if targetPlan.Valid {
		a.TargetRatePlanID = &targetPlan.Int64
	}
	if pmsCode.Valid {
		a.PMSCode = &pmsCode.String
	}
	if fixedPrice.Valid {
		a.FixedPrice = &fixedPrice.Float64
	}
	return a, nil
}

func (r *Repo) GetAssignment(ctx context.Context, hotelID, roomProductID, ratePlanID int64) (domain.PricingAssignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, getAssignmentSQL, hotelID, roomProductID, ratePlanID))
	if err == sql.ErrNoRows {
		return domain.PricingAssignment{}, domain.ErrNotFound
	}
	return a, err
}

func (r *Repo) queryAssignments(ctx context.Context, query string, args ...any) ([]domain.PricingAssignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PricingAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) ListAssignments(ctx context.Context, hotelID int64) ([]domain.PricingAssignment, error) {
	return r.queryAssignments(ctx, listAssignmentsSQL, hotelID)
}

func (r *Repo) ListAssignmentsByRatePlan(ctx context.Context, hotelID, ratePlanID int64) ([]domain.PricingAssignment, error) {
	return r.queryAssignments(ctx, listAssignmentsByRatePlanSQL, hotelID, ratePlanID)
}

func (r *Repo) ListAssignmentsTargeting(ctx context.Context, hotelID, targetRoomProductID int64) ([]domain.PricingAssignment, error) {
	return r.queryAssignments(ctx, listAssignmentsTargetingSQL, hotelID, targetRoomProductID)
}

func scanRoomProduct(row interface{ Scan(...any) error }) (domain.RoomProduct, error) {
	var p domain.RoomProduct
	var typ string
	if err := row.Scan(&p.ID, &p.HotelID, &p.Code, &typ, &p.Status); err != nil {
		return domain.RoomProduct{}, err
	}
	p.Type = domain.RoomProductType(typ)
	return p, nil
}

func (r *Repo) GetRoomProduct(ctx context.Context, id int64) (domain.RoomProduct, error) {
	p, err := scanRoomProduct(r.db.QueryRowContext(ctx, getRoomProductSQL, id))
	if err == sql.ErrNoRows {
		return domain.RoomProduct{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) GetRoomProductByCode(ctx context.Context, hotelID int64, code string) (domain.RoomProduct, error) {
	p, err := scanRoomProduct(r.db.QueryRowContext(ctx, getRoomProductByCodeSQL, hotelID, code))
	if err == sql.ErrNoRows {
		return domain.RoomProduct{}, domain.ErrNotFound
	}
	return p, err
}

func scanRatePlan(row interface{ Scan(...any) error }) (domain.RatePlan, error) {
	var p domain.RatePlan
	var rounding, unit string
	var pmsCode sql.NullString
	var parent sql.NullInt64
	if err := row.Scan(
		&p.ID, &p.HotelID, &p.Code, &p.AttributeModeEnabled, &p.PositioningModeEnabled,
		&rounding, &pmsCode, &parent, &p.AdjustmentValue, &unit,
	); err != nil {
		return domain.RatePlan{}, err
	}
	p.RoundingMode = domain.RoundingMode(rounding)
	p.AdjustmentUnit = domain.AdjustmentUnit(unit)
	if pmsCode.Valid {
		p.PMSRateCode = pmsCode.String
	}
	if parent.Valid {
		p.ParentRatePlanID = &parent.Int64
	}
	return p, nil
}

func (r *Repo) GetRatePlan(ctx context.Context, id int64) (domain.RatePlan, error) {
	p, err := scanRatePlan(r.db.QueryRowContext(ctx, getRatePlanSQL, id))
	if err == sql.ErrNoRows {
		return domain.RatePlan{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) GetRatePlanByPMSCode(ctx context.Context, hotelID int64, code string) (domain.RatePlan, error) {
	p, err := scanRatePlan(r.db.QueryRowContext(ctx, getRatePlanByPMSCodeSQL, hotelID, code))
	if err == sql.ErrNoRows {
		return domain.RatePlan{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) ListChildRatePlans(ctx context.Context, hotelID, parentRatePlanID int64) ([]domain.RatePlan, error) {
	rows, err := r.db.QueryContext(ctx, listChildRatePlansSQL, hotelID, parentRatePlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RatePlan
	for rows.Next() {
		p, err := scanRatePlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListRelated(ctx context.Context, hotelID, roomProductID int64) ([]domain.RelatedProduct, error) {
	rows, err := r.db.QueryContext(ctx, listRelatedSQL, roomProductID, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RelatedProduct
	for rows.Next() {
		var rel domain.RelatedProduct
		var typ string
		if err := rows.Scan(&rel.Product.ID, &rel.Product.HotelID, &rel.Product.Code, &typ, &rel.Product.Status, &rel.UnitQuantity); err != nil {
			return nil, err
		}
		rel.Product.Type = domain.RoomProductType(typ)
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertDailyPrices(ctx context.Context, prices []domain.DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}
	values := make([]string, 0, len(prices))
	args := make([]any, 0, len(prices)*10)
	for _, p := range prices {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			p.HotelID,
			p.RoomProductID,
			p.RatePlanID,
			domain.Day(p.Date),
			p.BasePrice,
			p.FeatureAdjustment,
			p.RatePlanAdjustment,
			p.NetPrice,
			p.GrossPrice,
			p.TaxAmount,
		)
	}
	sqlStr := insertDailyPricesPrefix + strings.Join(values, ",") + insertDailyPricesOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) GetDailyPrices(ctx context.Context, hotelID, roomProductID, ratePlanID int64, rng domain.DateRange) ([]domain.DailyPrice, error) {
	rows, err := r.db.QueryContext(ctx, getDailyPricesSQL,
		hotelID, roomProductID, ratePlanID, domain.Day(rng.From), domain.Day(rng.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DailyPrice
	for rows.Next() {
		var p domain.DailyPrice
		if err := rows.Scan(
			&p.HotelID, &p.RoomProductID, &p.RatePlanID, &p.Date, &p.BasePrice,
			&p.FeatureAdjustment, &p.RatePlanAdjustment, &p.NetPrice, &p.GrossPrice, &p.TaxAmount,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Providers reads the per-date inputs owned by other subsystems
// (inventory, feature rates, plan adjustments, taxes).
type Providers struct{ db *sql.DB }

func NewProviders(db *sql.DB) *Providers { return &Providers{db: db} }

func (p *Providers) AvailableUnits(ctx context.Context, hotelID, roomProductID int64, date time.Time) (int, int, error) {
	var available, capacity int
	err := p.db.QueryRowContext(ctx, availableUnitsSQL, hotelID, roomProductID, domain.Day(date)).
		Scan(&available, &capacity)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	return available, capacity, err
}

func (p *Providers) FeatureRates(ctx context.Context, hotelID, roomProductID int64, date time.Time) ([]domain.FeatureRate, error) {
	rows, err := p.db.QueryContext(ctx, featureRatesSQL, domain.Day(date), hotelID, roomProductID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.FeatureRate
	for rows.Next() {
		var fr domain.FeatureRate
		var override sql.NullFloat64
		if err := rows.Scan(&fr.FeatureID, &fr.BaseRate, &fr.Quantity, &override); err != nil {
			return nil, err
		}
		if override.Valid {
			fr.DailyOverride = &override.Float64
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func (p *Providers) RatePlanAdjustment(ctx context.Context, hotelID, ratePlanID int64, date time.Time) (*domain.Adjustment, error) {
	var adj domain.Adjustment
	var unit string
	err := p.db.QueryRowContext(ctx, ratePlanAdjustmentSQL, hotelID, ratePlanID, domain.Day(date)).
		Scan(&adj.Value, &unit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	adj.Unit = domain.AdjustmentUnit(unit)
	return &adj, nil
}

func (p *Providers) TaxSettings(ctx context.Context, hotelID, ratePlanID int64, date time.Time) ([]domain.TaxSetting, error) {
	d := domain.Day(date)
	rows, err := p.db.QueryContext(ctx, taxSettingsSQL, hotelID, ratePlanID, d, d)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TaxSetting
	for rows.Next() {
		var ts domain.TaxSetting
		if err := rows.Scan(&ts.Code, &ts.Rate); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}
