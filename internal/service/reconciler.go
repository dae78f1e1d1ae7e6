package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reconciler periodically credits joins whose handler died between logging
// the join and crediting it.
type Reconciler struct {
	counters CounterStore
	interval time.Duration
	logger   *zap.Logger
}

func NewReconciler(counters CounterStore, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		counters: counters,
		interval: interval,
		logger:   logger.Named("reconciler"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	return r.counters.Reconcile(ctx)
}
