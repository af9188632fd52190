package scrape

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// hostLimiter paces requests per host. Each host's rate grows 20% on
// success up to twice the base and halves on 429 down to a quarter.
type hostLimiter struct {
	base  rate.Limit
	burst int

	mu    sync.Mutex
	hosts map[string]*adaptiveLimiter
}

type adaptiveLimiter struct {
	limiter *rate.Limiter
	current rate.Limit
}

func newHostLimiter(rps float64, burst int) *hostLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &hostLimiter{
		base:  rate.Limit(rps),
		burst: burst,
		hosts: make(map[string]*adaptiveLimiter),
	}
}

func (h *hostLimiter) get(rawURL string) *adaptiveLimiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.hosts[host]
	if !ok {
		l = &adaptiveLimiter{limiter: rate.NewLimiter(h.base, h.burst), current: h.base}
		h.hosts[host] = l
	}
	return l
}

// Wait blocks until a request to rawURL's host is allowed. A nil or
// unlimited hostLimiter never blocks.
func (h *hostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.base <= 0 {
		return nil
	}
	return h.get(rawURL).limiter.Wait(ctx)
}

// OnSuccess nudges the host's rate up.
func (h *hostLimiter) OnSuccess(rawURL string) {
	if h == nil || h.base <= 0 {
		return
	}
	l := h.get(rawURL)
	h.mu.Lock()
	defer h.mu.Unlock()
	next := min(l.current*1.2, h.base*2)
	l.current = next
	l.limiter.SetLimit(next)
}

// OnRateLimit halves the host's rate.
func (h *hostLimiter) OnRateLimit(rawURL string) {
	if h == nil || h.base <= 0 {
		return
	}
	l := h.get(rawURL)
	h.mu.Lock()
	defer h.mu.Unlock()
	next := max(l.current*0.5, h.base/4)
	l.current = next
	l.limiter.SetLimit(next)
	zap.L().Debug("scrape: host rate reduced after 429",
		zap.String("url", rawURL),
		zap.Float64("rps", float64(next)),
	)
}

// Limit returns the current rate for rawURL's host.
func (h *hostLimiter) Limit(rawURL string) rate.Limit {
	l := h.get(rawURL)
	h.mu.Lock()
	defer h.mu.Unlock()
	return l.current
}
