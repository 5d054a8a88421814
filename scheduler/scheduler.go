package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job 是一次调度要执行的任务。
type Job func(ctx context.Context)

// IntervalScheduler 启动时先跑一次，之后按固定间隔执行。
// time.Ticker 在任务超时未取走 tick 时会丢弃多余的 tick，
// 因此卡顿后只补跑一次，不会连续追赶。任务本身不会重叠执行。
type IntervalScheduler struct {
	Interval time.Duration
	Logger   *slog.Logger
}

func NewIntervalScheduler(interval time.Duration, logger *slog.Logger) *IntervalScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntervalScheduler{Interval: interval, Logger: logger}
}

// Run 阻塞直到 ctx 取消。
func (s *IntervalScheduler) Run(ctx context.Context, job Job) error {
	log := s.Logger.With("component", "scheduler")
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Info("scheduler started", "interval", s.Interval)
	s.runOnce(ctx, log, job)

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, log, job)
		}
	}
}

func (s *IntervalScheduler) runOnce(ctx context.Context, log *slog.Logger, job Job) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
		}
	}()
	start := time.Now()
	job(ctx)
	log.Debug("job finished", "duration", time.Since(start))
}
