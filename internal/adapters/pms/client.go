// Package pms is the HTTP connector to the external property-management
// system. The PMS is rate limited and must see calls in order, so callers
// serialize pushes per hotel and defer rate-limited pushes through the
// task queue instead of retrying inline.
package pms

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ratecascade/internal/domain"
)

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type wirePrice struct {
	Date            string  `json:"date"`
	GrossPrice      float64 `json:"grossPrice"`
	NetPrice        float64 `json:"netPrice"`
	RoomProductCode string  `json:"roomProductCode"`
}

func (c *Client) PullPrices(ctx context.Context, hotelID int64, rateCode string, rng domain.DateRange) ([]domain.PMSPrice, error) {
	url := fmt.Sprintf("%s/hotels/%d/rates/%s/prices?from=%s&to=%s",
		c.base, hotelID, rateCode, domain.DayKey(rng.From), domain.DayKey(rng.To))
	var wire []wirePrice
	if err := c.do(ctx, http.MethodGet, url, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.PMSPrice, 0, len(wire))
	for _, w := range wire {
		d, err := time.Parse("2006-01-02", w.Date)
		if err != nil {
			return nil, fmt.Errorf("pms: bad date %q: %w", w.Date, err)
		}
		out = append(out, domain.PMSPrice{
			Date:            d,
			GrossPrice:      w.GrossPrice,
			NetPrice:        w.NetPrice,
			RoomProductCode: w.RoomProductCode,
		})
	}
	return out, nil
}

func (c *Client) PushPrices(ctx context.Context, hotelID int64, rateCode string, prices []domain.PMSPrice) error {
	url := fmt.Sprintf("%s/hotels/%d/rates/%s/prices", c.base, hotelID, rateCode)
	wire := make([]wirePrice, 0, len(prices))
	for _, p := range prices {
		wire = append(wire, wirePrice{
			Date:            domain.DayKey(p.Date),
			GrossPrice:      p.GrossPrice,
			NetPrice:        p.NetPrice,
			RoomProductCode: p.RoomProductCode,
		})
	}
	return c.do(ctx, http.MethodPost, url, wire, nil)
}

// do performs one call with client-side rate limiting and retries on
// transient 5xx, honoring Retry-After. 429 is never retried inline: it
// surfaces as ErrRateLimited so the caller can defer through the queue.
func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("User-Agent", "ratecascade/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusTooManyRequests:
			resp.Body.Close()
			return domain.ErrRateLimited

		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("pms: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("pms: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential delay (200ms, 400ms, 800ms...) with up to
// +50% jitter from crypto/rand to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
