package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ratecascade/internal/cascade"
	"ratecascade/internal/domain"
)

// CascadeService is the application entry point: it validates
// configuration, seeds a fresh run context per invocation and hands it to
// the cascade controller.
type CascadeService struct {
	deps cascade.Deps
	pms  domain.PMSGateway
	ctrl *cascade.Controller
	log  zerolog.Logger
}

func NewCascadeService(deps cascade.Deps, pms domain.PMSGateway, ctrl *cascade.Controller, log zerolog.Logger) *CascadeService {
	return &CascadeService{deps: deps, pms: pms, ctrl: ctrl, log: log}
}

// ApplyPricingAssignment persists a new or updated assignment and runs one
// cascade scoped to the date window, with the assignment's tuple as origin.
// Invalid assignments are rejected synchronously and never persisted.
func (s *CascadeService) ApplyPricingAssignment(ctx context.Context, a domain.PricingAssignment, rng domain.DateRange) (domain.AffectedResult, error) {
	if err := a.Validate(); err != nil {
		return domain.AffectedResult{}, err
	}
	if err := s.validateTargets(ctx, a); err != nil {
		return domain.AffectedResult{}, err
	}
	if err := s.deps.Repo.UpsertAssignment(ctx, a); err != nil {
		return domain.AffectedResult{}, fmt.Errorf("persist assignment: %w", err)
	}

	run := cascade.NewRun(s.deps, rng, s.log)
	return s.execute(ctx, run, []cascade.Node{{Assignment: a, Range: rng}})
}

// CascadeFromExternalUpdate pulls authoritative prices from the PMS for a
// rate code (optionally narrowed to one room product) and cascades from
// the tuples they land on.
func (s *CascadeService) CascadeFromExternalUpdate(ctx context.Context, hotelID int64, pmsRateCode, roomProductCode string, rng domain.DateRange) (domain.AffectedResult, error) {
	plan, err := s.deps.Repo.GetRatePlanByPMSCode(ctx, hotelID, pmsRateCode)
	if err != nil {
		return domain.AffectedResult{}, fmt.Errorf("rate plan for pms code %q: %w", pmsRateCode, err)
	}

	prices, err := s.pms.PullPrices(ctx, hotelID, pmsRateCode, rng)
	if err != nil {
		return domain.AffectedResult{}, fmt.Errorf("pms pull: %w", err)
	}

	byProduct := make(map[string][]domain.PMSPrice)
	for _, p := range prices {
		if roomProductCode != "" && p.RoomProductCode != roomProductCode {
			continue
		}
		byProduct[p.RoomProductCode] = append(byProduct[p.RoomProductCode], p)
	}

	run := cascade.NewRun(s.deps, rng, s.log)
	var seeds []cascade.Node
	for code, series := range byProduct {
		product, err := s.deps.Repo.GetRoomProductByCode(ctx, hotelID, code)
		if err != nil {
			s.log.Warn().Err(err).Str("code", code).Msg("pms price for unknown room product, skipped")
			continue
		}
		a, err := s.deps.Repo.GetAssignment(ctx, hotelID, product.ID, plan.ID)
		if err != nil || a.Method != domain.MethodPMS {
			s.log.Warn().Str("code", code).Msg("no PMS assignment for pulled price, skipped")
			continue
		}
		run.SetExternal(a.Tuple(), series)
		seeds = append(seeds, cascade.Node{Assignment: a, Range: rng})
	}
	return s.execute(ctx, run, seeds)
}

// ReconcileAll recomputes every assignment of the hotel over the window.
// Idempotent: with unchanged inputs the redundancy filter drops every row
// and the result reports zero writes.
func (s *CascadeService) ReconcileAll(ctx context.Context, hotelID int64, rng domain.DateRange) (domain.AffectedResult, error) {
	assignments, err := s.deps.Repo.ListAssignments(ctx, hotelID)
	if err != nil {
		return domain.AffectedResult{}, fmt.Errorf("list assignments: %w", err)
	}
	run := cascade.NewRun(s.deps, rng, s.log)
	seeds := make([]cascade.Node, 0, len(assignments))
	for _, a := range assignments {
		seeds = append(seeds, cascade.Node{Assignment: a, Range: rng})
	}
	return s.execute(ctx, run, seeds)
}

// Prices reads back computed records for one tuple.
func (s *CascadeService) Prices(ctx context.Context, hotelID, roomProductID, ratePlanID int64, rng domain.DateRange) ([]domain.DailyPrice, error) {
	return s.deps.Repo.GetDailyPrices(ctx, hotelID, roomProductID, ratePlanID, rng)
}

func (s *CascadeService) execute(ctx context.Context, run *cascade.Run, seeds []cascade.Node) (domain.AffectedResult, error) {
	frontier, err := s.ctrl.Seed(ctx, run, seeds)
	if err != nil {
		return run.Result(), err
	}
	return s.ctrl.Execute(ctx, run, frontier)
}

// validateTargets rejects assignments whose referenced entities do not
// exist, so a dangling LINK or DERIVED edge can never be configured.
func (s *CascadeService) validateTargets(ctx context.Context, a domain.PricingAssignment) error {
	check := func(err error, what string) error {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s does not exist", domain.ErrInvalidAssignment, what)
		}
		return err
	}
	if a.TargetRoomProductID != nil {
		if _, err := s.deps.Repo.GetRoomProduct(ctx, *a.TargetRoomProductID); err != nil {
			return check(err, "target room product")
		}
	}
	if a.TargetRatePlanID != nil {
		if _, err := s.deps.Repo.GetRatePlan(ctx, *a.TargetRatePlanID); err != nil {
			return check(err, "target rate plan")
		}
	}
	return nil
}
