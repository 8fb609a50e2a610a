package mysql

const upsertAssignmentSQL = `
INSERT INTO pricing_assignments
  (hotel_id, room_product_id, rate_plan_id, method, adjustment_value, adjustment_unit,
   target_room_product_id, target_rate_plan_id, pms_code, fixed_price)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  method                 = VALUES(method),
  adjustment_value       = VALUES(adjustment_value),
  adjustment_unit        = VALUES(adjustment_unit),
  target_room_product_id = VALUES(target_room_product_id),
  target_rate_plan_id    = VALUES(target_rate_plan_id),
  pms_code               = VALUES(pms_code),
  fixed_price            = VALUES(fixed_price),
  updated_at             = CURRENT_TIMESTAMP
`

const assignmentColumns = `
  hotel_id, room_product_id, rate_plan_id, method, adjustment_value, adjustment_unit,
  target_room_product_id, target_rate_plan_id, pms_code, fixed_price
`

const getAssignmentSQL = `
SELECT` + assignmentColumns + `
FROM pricing_assignments
WHERE hotel_id = ? AND room_product_id = ? AND rate_plan_id = ?
`

const listAssignmentsSQL = `
SELECT` + assignmentColumns + `
FROM pricing_assignments
WHERE hotel_id = ?
ORDER BY rate_plan_id, room_product_id
`

const listAssignmentsByRatePlanSQL = `
SELECT` + assignmentColumns + `
FROM pricing_assignments
WHERE hotel_id = ? AND rate_plan_id = ?
ORDER BY room_product_id
`

const listAssignmentsTargetingSQL = `
SELECT` + assignmentColumns + `
FROM pricing_assignments
WHERE hotel_id = ? AND target_room_product_id = ?
ORDER BY rate_plan_id, room_product_id
`

const getRoomProductSQL = `
SELECT id, hotel_id, code, type, status
FROM room_products
WHERE id = ?
`

const getRoomProductByCodeSQL = `
SELECT id, hotel_id, code, type, status
FROM room_products
WHERE hotel_id = ? AND code = ?
`

const ratePlanColumns = `
  id, hotel_id, code, attribute_mode_enabled, positioning_mode_enabled,
  rounding_mode, pms_rate_code, parent_rate_plan_id, adjustment_value, adjustment_unit
`

const getRatePlanSQL = `
SELECT` + ratePlanColumns + `
FROM rate_plans
WHERE id = ?
`

const getRatePlanByPMSCodeSQL = `
SELECT` + ratePlanColumns + `
FROM rate_plans
WHERE hotel_id = ? AND pms_rate_code = ?
`

const listChildRatePlansSQL = `
SELECT` + ratePlanColumns + `
FROM rate_plans
WHERE hotel_id = ? AND parent_rate_plan_id = ?
ORDER BY id
`

// Two room products are related when they share at least one physical
// unit; the shared-unit count is the quantity REVERSED divides by.
const listRelatedSQL = `
SELECT rp.id, rp.hotel_id, rp.code, rp.type, rp.status, COUNT(*) AS shared_units
FROM room_product_units a
JOIN room_product_units b ON b.unit_id = a.unit_id AND b.room_product_id <> a.room_product_id
JOIN room_products rp     ON rp.id = b.room_product_id
WHERE a.room_product_id = ? AND rp.hotel_id = ?
GROUP BY rp.id, rp.hotel_id, rp.code, rp.type, rp.status
ORDER BY rp.id
`

const insertDailyPricesPrefix = `INSERT INTO daily_prices
  (hotel_id, room_product_id, rate_plan_id, price_date, base_price, feature_adjustment,
   rate_plan_adjustment, net_price, gross_price, tax_amount)
VALUES `

const insertDailyPricesOnDup = ` ON DUPLICATE KEY UPDATE
  base_price           = VALUES(base_price),
  feature_adjustment   = VALUES(feature_adjustment),
  rate_plan_adjustment = VALUES(rate_plan_adjustment),
  net_price            = VALUES(net_price),
  gross_price          = VALUES(gross_price),
  tax_amount           = VALUES(tax_amount),
  updated_at           = CURRENT_TIMESTAMP
`

const getDailyPricesSQL = `
SELECT hotel_id, room_product_id, rate_plan_id, price_date, base_price, feature_adjustment,
       rate_plan_adjustment, net_price, gross_price, tax_amount
FROM daily_prices
WHERE hotel_id = ? AND room_product_id = ? AND rate_plan_id = ?
  AND price_date BETWEEN ? AND ?
ORDER BY price_date
`

// Provider reads. These tables are owned by other subsystems; the engine
// only ever selects from them.

const availableUnitsSQL = `
SELECT available, capacity
FROM inventory_days
WHERE hotel_id = ? AND room_product_id = ? AND inv_date = ?
`

const featureRatesSQL = `
SELECT fa.feature_id, fa.base_rate, fa.quantity, o.rate
FROM feature_assignments fa
LEFT JOIN feature_rate_overrides o
  ON o.room_product_id = fa.room_product_id
 AND o.feature_id = fa.feature_id
 AND o.rate_date = ?
WHERE fa.hotel_id = ? AND fa.room_product_id = ?
ORDER BY fa.feature_id
`

const ratePlanAdjustmentSQL = `
SELECT value, unit
FROM rate_plan_adjustments
WHERE hotel_id = ? AND rate_plan_id = ? AND adj_date = ?
`

const taxSettingsSQL = `
SELECT code, rate
FROM tax_settings
WHERE hotel_id = ? AND rate_plan_id = ?
  AND valid_from <= ? AND (valid_to IS NULL OR valid_to >= ?)
ORDER BY code
`
