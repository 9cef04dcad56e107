// internal/generation/runner.go
package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"routeforge/internal/common/logger"
	"routeforge/internal/models"
)

// RunnerConfig sizes the polling loop.
type RunnerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

// Runner drains pending generation records through the service on an
// interval. Multiple runners may poll the same store: Begin's guarded
// transition ensures only one of them processes a given record, the others
// skip it.
type Runner struct {
	svc      *Service
	interval time.Duration
	batch    int
	workers  int
	logger   logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRunner builds a Runner. Zero config fields fall back to defaults.
func NewRunner(svc *Service, cfg RunnerConfig, log logger.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{
		svc:      svc,
		interval: cfg.Interval,
		batch:    cfg.BatchSize,
		workers:  cfg.Concurrency,
		logger:   log.WithFields(map[string]interface{}{"component": "generation-runner"}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop and returns immediately.
func (r *Runner) Start() {
	r.logger.Info("runner starting", map[string]interface{}{
		"interval":    r.interval.String(),
		"batchSize":   r.batch,
		"concurrency": r.workers,
	})
	go r.loop()
}

// Stop halts polling and waits for the in-flight batch to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	r.logger.Info("runner stopped", nil)
}

func (r *Runner) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	ctx := context.Background()
	r.drain(ctx)
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain lists one batch of pending records and processes them with bounded
// concurrency. The batch always runs to completion, even across Stop.
func (r *Runner) drain(ctx context.Context) {
	recs, err := r.svc.ListPending(ctx, r.batch)
	if err != nil {
		r.logger.Error("listing pending generations failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if len(recs) == 0 {
		return
	}

	r.logger.Debug("draining pending generations", map[string]interface{}{
		"count": len(recs),
	})

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, rec := range recs {
		sem <- struct{}{}
		wg.Add(1)
		go func(rec *models.GenerationRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			r.process(ctx, rec)
		}(rec)
	}
	wg.Wait()
}

// process runs one record end to end. Losing the Begin race to another
// runner is not an error, the record is simply skipped.
func (r *Runner) process(ctx context.Context, rec *models.GenerationRecord) {
	out, err := r.svc.Process(ctx, rec)
	if err != nil {
		var tErr *TransitionError
		if errors.As(err, &tErr) {
			r.logger.Debug("skipping contended record", map[string]interface{}{
				"recordId": rec.ID,
				"status":   string(tErr.Status),
			})
			return
		}
		r.logger.Error("processing generation failed", map[string]interface{}{
			"recordId": rec.ID,
			"error":    err.Error(),
		})
		return
	}

	r.logger.Info("generation processed", map[string]interface{}{
		"recordId": out.ID,
		"status":   string(out.Status),
	})
}
