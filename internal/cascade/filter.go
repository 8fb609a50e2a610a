package cascade

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"ratecascade/internal/domain"
)

// baseEpsilon: base prices are compared at 4 decimal places.
const baseEpsilon = 0.00005

// Filter drops no-op writes before they reach persistence, so a full
// recomputation with unchanged inputs cannot fan back out through the
// dependency graph.
type Filter struct {
	log zerolog.Logger
}

func NewFilter(log zerolog.Logger) *Filter { return &Filter{log: log} }

// Drop returns only the rows whose base price differs from the last known
// value for the same tuple and date.
func (f *Filter) Drop(ctx context.Context, run *Run, rows []domain.DailyPrice) (kept []domain.DailyPrice, dropped int) {
	for _, row := range rows {
		t := domain.TupleRef{HotelID: row.HotelID, RoomProductID: row.RoomProductID, RatePlanID: row.RatePlanID}
		prev, ok := run.knownBase(ctx, t, row.Date)
		if ok && math.Abs(prev-row.BasePrice) < baseEpsilon {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	return kept, dropped
}
