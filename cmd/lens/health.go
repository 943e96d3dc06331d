package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
)

// healthChecker probes every pool endpoint with getSlot so endpoints marked
// unhealthy after a failed request rejoin the rotation once they answer.
type healthChecker struct {
	pool       *rpcfetch.SimplePool
	timeout    time.Duration
	commitment string
	logger     *zap.Logger
}

func newHealthChecker(pool *rpcfetch.SimplePool, timeout time.Duration, commitment string, logger *zap.Logger) *healthChecker {
	return &healthChecker{pool: pool, timeout: timeout, commitment: commitment, logger: logger}
}

func (h *healthChecker) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *healthChecker) check(ctx context.Context) {
	var wg sync.WaitGroup
	for _, url := range h.pool.URLs() {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			probe := rpcfetch.NewRPCClient(rpcfetch.NewSimplePool([]string{url}), h.timeout,
				rpcfetch.WithCommitment(h.commitment))

			pctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			slot, err := probe.GetSlot(pctx)
			if err != nil {
				h.pool.MarkUnhealthy(url, err)
				h.logger.Debug("endpoint unhealthy", zap.String("url", url), zap.Error(err))
				return
			}
			h.pool.MarkHealthy(url, time.Since(start))
			h.logger.Debug("endpoint healthy", zap.String("url", url), zap.Uint64("slot", slot))
		}(url)
	}
	wg.Wait()

	h.logger.Debug("health check complete",
		zap.Int("healthy", h.pool.GetHealthyCount()),
		zap.Int("total", len(h.pool.URLs())),
	)
}
