// Package redisqueue backs two ports with redis: the PMS push task queue
// (deduplicated on hotel/rate-plan/room-product) and the base-price
// snapshot cache the redundancy filter reads.
package redisqueue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ratecascade/internal/adapters/observability"
	"ratecascade/internal/domain"
)

const (
	tasksKey   = "pmspush:tasks"
	recencyKey = "pmspush:recency"
)

type Queue struct{ c *redis.Client }

func NewQueue(addr, pass string, db int) *Queue {
	return &Queue{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func NewQueueWithClient(c *redis.Client) *Queue { return &Queue{c: c} }

// Set enqueues or refreshes a task. A task already pending for the same
// tuple is overwritten with a widened date range and a fresh recency
// score, so repeated cascades collapse into one push.
func (q *Queue) Set(ctx context.Context, t domain.PushTask) error {
	if prev, ok, err := q.Get(ctx, t.Key()); err != nil {
		return err
	} else if ok {
		if prev.From.Before(t.From) {
			t.From = prev.From
		}
		if prev.To.After(t.To) {
			t.To = prev.To
		}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	pipe := q.c.TxPipeline()
	pipe.HSet(ctx, tasksKey, t.Key(), b)
	pipe.ZAdd(ctx, recencyKey, redis.Z{Score: float64(t.EnqueuedAt.UnixNano()), Member: t.Key()})
	_, err = pipe.Exec(ctx)
	return err
}

func (q *Queue) Get(ctx context.Context, key string) (domain.PushTask, bool, error) {
	v, err := q.c.HGet(ctx, tasksKey, key).Bytes()
	if err == redis.Nil {
		return domain.PushTask{}, false, nil
	}
	if err != nil {
		return domain.PushTask{}, false, err
	}
	var t domain.PushTask
	if err := json.Unmarshal(v, &t); err != nil {
		return domain.PushTask{}, false, err
	}
	return t, true, nil
}

func (q *Queue) Delete(ctx context.Context, key string) error {
	pipe := q.c.TxPipeline()
	pipe.HDel(ctx, tasksKey, key)
	pipe.ZRem(ctx, recencyKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

// ListRecent returns up to limit tasks, most recently enqueued first.
func (q *Queue) ListRecent(ctx context.Context, limit int) ([]domain.PushTask, error) {
	if limit <= 0 {
		limit = 100
	}
	keys, err := q.c.ZRevRange(ctx, recencyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.PushTask, 0, len(keys))
	for _, k := range keys {
		t, ok, err := q.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Snapshots is the redundancy filter's persisted view of last-written base
// prices, keyed per tuple and window.
type Snapshots struct {
	c   *redis.Client
	ttl time.Duration
}

func NewSnapshots(addr, pass string, db int, ttl time.Duration) *Snapshots {
	return &Snapshots{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl: ttl}
}

func NewSnapshotsWithClient(c *redis.Client, ttl time.Duration) *Snapshots {
	return &Snapshots{c: c, ttl: ttl}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func snapKey(t domain.TupleRef, rng domain.DateRange) string {
	return "snap:" +
		domain.DayKey(rng.From) + ":" + domain.DayKey(rng.To) + ":" +
		itoa(t.HotelID) + ":" + itoa(t.RoomProductID) + ":" + itoa(t.RatePlanID)
}

func (s *Snapshots) GetBasePrices(ctx context.Context, t domain.TupleRef, rng domain.DateRange) (map[string]float64, bool, error) {
	v, err := s.c.Get(ctx, snapKey(t, rng)).Bytes()
	if err == redis.Nil {
		observability.ObserveCache("snapshot", "miss")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var m map[string]float64
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, false, err
	}
	observability.ObserveCache("snapshot", "hit")
	return m, true, nil
}

func (s *Snapshots) SetBasePrices(ctx context.Context, t domain.TupleRef, rng domain.DateRange, prices map[string]float64) error {
	b, err := json.Marshal(prices)
	if err != nil {
		return err
	}
	observability.ObserveCache("snapshot", "set")
	return s.c.Set(ctx, snapKey(t, rng), b, s.ttl).Err()
}
