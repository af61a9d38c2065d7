package service

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
)

const (
	DefaultPollInterval    = 30 * time.Second
	DefaultPollTimeout     = 10 * time.Second
	DefaultPollConcurrency = 4
)

type PollerConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
}

// SweepResult summarizes one pass over the in-flight records.
type SweepResult struct {
	Checked int
	Updated int
	Failed  int
}

// Poller periodically reconciles every processing record against the Engine.
type Poller struct {
	store   port.VideoStore
	orch    *Orchestrator
	cfg     PollerConfig
	metrics *metrics
}

func NewPoller(store port.VideoStore, orch *Orchestrator, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultPollConcurrency
	}
	return &Poller{store: store, orch: orch, cfg: cfg, metrics: orch.metrics}
}

// Run sweeps once per interval until ctx is cancelled. The first sweep
// happens one interval after the start.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	logger.Info.Printf("status poller started (interval=%s, timeout=%s, concurrency=%d)",
		p.cfg.Interval, p.cfg.Timeout, p.cfg.Concurrency)
	for {
		select {
		case <-ctx.Done():
			logger.Info.Printf("status poller shutting down")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep checks each processing record once. A failing record is counted and
// skipped; it is picked up again on the next sweep.
func (p *Poller) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	start := time.Now()

	videos, err := p.store.ListProcessing(ctx)
	if err != nil {
		logger.Error.Printf("poller: failed to list processing videos: %v", err)
		p.metrics.recordSweep(ctx, res, time.Since(start))
		return res
	}
	if len(videos) == 0 {
		p.metrics.recordSweep(ctx, res, time.Since(start))
		return res
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan *domain.Video)
	)
	for range min(p.cfg.Concurrency, len(videos)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				_, outcome := p.orch.refresh(ctx, v, p.cfg.Timeout, "poll")
				mu.Lock()
				res.Checked++
				switch outcome {
				case refreshUpdated:
					res.Updated++
				case refreshFailed:
					res.Failed++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, v := range videos {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- v:
		}
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	p.metrics.recordSweep(ctx, res, elapsed)
	logger.Info.Printf("poller: checked=%d updated=%d failed=%d in %s", res.Checked, res.Updated, res.Failed, elapsed.Round(time.Millisecond))
	return res
}
