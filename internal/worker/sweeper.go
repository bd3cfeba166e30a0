package worker

import (
	"context"
	"time"

	applog "teamorders/internal/log"
)

// Sweeper periodically mirrors rows whose order message never arrived.
type Sweeper struct {
	worker   *MirrorWorker
	interval time.Duration
	logger   *applog.Logger
}

func NewSweeper(w *MirrorWorker, interval time.Duration, logger *applog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Sweeper{worker: w, interval: interval, logger: logger.WithComponent(applog.ComponentWorker)}
}

// Run sweeps once immediately and then every interval until ctx is done.
// Sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Mirror sweeper started", "interval", s.interval)
	if err := s.worker.StartupSyncCheck(ctx); err != nil {
		s.logger.WarnContext(ctx, "Startup sync check failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Mirror sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.worker.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				s.worker.events.LogError(ctx, "Mirror sweep failed", err, applog.ComponentWorker, applog.OpMirror, nil)
			}
		}
	}
}
