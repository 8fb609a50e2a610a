package main

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"ratecascade/internal/adapters/observability"
	"ratecascade/internal/adapters/pms"
	"ratecascade/internal/adapters/redisqueue"
	"ratecascade/internal/domain"
	"ratecascade/internal/shared"
	mysqlrepo "ratecascade/internal/storage/mysql"
)

// The push worker drains the PMS task queue. The PMS is rate limited and
// must see calls in order, so tasks are grouped by hotel and each hotel's
// tasks run strictly sequentially; distinct hotels run concurrently up to
// the semaphore weight.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.PMSBase).
		Dur("interval", cfg.PushInterval).
		Int("batch", cfg.PushBatch).
		Msg("push worker starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	queue := redisqueue.NewQueue(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	gateway, err := pms.New(cfg.PMSBase, cfg.PMSKey, cfg.PMSRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PMS client")
	}

	w := &worker{repo: repo, queue: queue, gateway: gateway}
	ticker := time.NewTicker(cfg.PushInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx, cfg.PushBatch)
		<-ticker.C
	}
}

type worker struct {
	repo    domain.PriceRepository
	queue   domain.TaskQueue
	gateway domain.PMSGateway
}

func (w *worker) drain(ctx context.Context, batch int) {
	tasks, err := w.queue.ListRecent(ctx, batch)
	if err != nil {
		log.Error().Err(err).Msg("listing push tasks failed")
		return
	}
	if len(tasks) == 0 {
		return
	}

	byHotel := make(map[int64][]domain.PushTask)
	for _, t := range tasks {
		byHotel[t.HotelID] = append(byHotel[t.HotelID], t)
	}

	sem := semaphore.NewWeighted(4)
	var wg sync.WaitGroup
	for hotelID, hotelTasks := range byHotel {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			return
		}
		wg.Add(1)
		go func(hotelID int64, hotelTasks []domain.PushTask) {
			defer wg.Done()
			defer sem.Release(1)
			for _, t := range hotelTasks {
				w.push(ctx, t)
			}
		}(hotelID, hotelTasks)
	}
	wg.Wait()
}

// push delivers one task. Rate-limit responses re-enqueue the task rather
// than retrying inline; other failures keep the task for the next sweep.
func (w *worker) push(ctx context.Context, t domain.PushTask) {
	plan, err := w.repo.GetRatePlan(ctx, t.RatePlanID)
	if err != nil || plan.PMSRateCode == "" {
		log.Warn().Err(err).Int64("rate_plan", t.RatePlanID).Msg("push task without exportable plan, dropping")
		_ = w.queue.Delete(ctx, t.Key())
		return
	}
	product, err := w.repo.GetRoomProduct(ctx, t.RoomProductID)
	if err != nil {
		log.Warn().Err(err).Int64("room_product", t.RoomProductID).Msg("push task for unknown product, dropping")
		_ = w.queue.Delete(ctx, t.Key())
		return
	}

	rows, err := w.repo.GetDailyPrices(ctx, t.HotelID, t.RoomProductID, t.RatePlanID, domain.NewDateRange(t.From, t.To))
	if err != nil {
		log.Error().Err(err).Msg("loading prices for push failed")
		observability.ObservePMSPush("failed")
		return
	}
	prices := make([]domain.PMSPrice, 0, len(rows))
	for _, row := range rows {
		prices = append(prices, domain.PMSPrice{
			Date:            row.Date,
			GrossPrice:      row.GrossPrice,
			NetPrice:        row.NetPrice,
			RoomProductCode: product.Code,
		})
	}
	if len(prices) == 0 {
		_ = w.queue.Delete(ctx, t.Key())
		return
	}

	switch err := w.gateway.PushPrices(ctx, t.HotelID, plan.PMSRateCode, prices); {
	case err == nil:
		observability.ObservePMSPush("pushed")
		if err := w.queue.Delete(ctx, t.Key()); err != nil {
			log.Error().Err(err).Msg("deleting completed push task failed")
		}
	case errors.Is(err, domain.ErrRateLimited):
		observability.ObservePMSPush("deferred")
		t.EnqueuedAt = time.Now().UTC()
		if err := w.queue.Set(ctx, t); err != nil {
			log.Error().Err(err).Msg("re-enqueueing deferred push task failed")
		}
		log.Warn().Int64("hotel", t.HotelID).Str("rate_code", plan.PMSRateCode).Msg("push deferred by PMS rate limit")
	default:
		observability.ObservePMSPush("failed")
		log.Error().Err(err).Int64("hotel", t.HotelID).Str("rate_code", plan.PMSRateCode).Msg("push failed")
	}
}
