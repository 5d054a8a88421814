package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"DocWatch/differ"
	"DocWatch/fetcher"

	"golang.org/x/sync/errgroup"
)

// SnapshotTracker 是轮询需要的 Tracker 子集。
type SnapshotTracker interface {
	List() []string
	UpdateIfChanged(id, newContent string) (old string, changed bool, err error)
}

// PollerService 每轮对所有被监控页面做一次 抓取 -> 比较 -> 持久化 -> 通知。
// 单个页面的失败只影响它自己。
type PollerService struct {
	Tracker      SnapshotTracker
	Fetcher      fetcher.Fetcher
	Notifier     *NotifierService
	Workers      int
	FetchTimeout time.Duration
	DiffLimit    int
	Logger       *slog.Logger
}

// CycleStats 汇总一轮检查的结果。
type CycleStats struct {
	Checked int
	Changed int
	Failed  int
}

func (p *PollerService) Run(ctx context.Context) {
	p.CheckOnce(ctx)
}

func (p *PollerService) CheckOnce(ctx context.Context) CycleStats {
	log := p.Logger
	if log == nil {
		log = slog.Default().With("component", "poller")
	}
	if p.Tracker == nil || p.Fetcher == nil {
		log.Error("poll skipped", "error", ErrMissingDependencies)
		return CycleStats{}
	}

	ids := p.Tracker.List()
	var checked, changed, failed atomic.Int64

	var g errgroup.Group
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					log.Error("check panicked", "url", id, "panic", r)
				}
			}()
			switch p.checkOne(ctx, log, id) {
			case outcomeChanged:
				changed.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
			checked.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	stats := CycleStats{Checked: int(checked.Load()), Changed: int(changed.Load()), Failed: int(failed.Load())}
	log.Info("poll cycle finished", "tracked", len(ids), "checked", stats.Checked, "changed", stats.Changed, "failed", stats.Failed)
	return stats
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeChanged
	outcomeFailed
)

func (p *PollerService) checkOne(ctx context.Context, log *slog.Logger, id string) outcome {
	fetchCtx := ctx
	cancel := func() {}
	if p.FetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, p.FetchTimeout)
	}
	content, ok := p.Fetcher.Fetch(fetchCtx, id)
	cancel()
	if !ok {
		log.Warn("fetch failed, keeping last snapshot", "url", id)
		return outcomeFailed
	}

	old, applied, err := p.Tracker.UpdateIfChanged(id, content)
	if err != nil {
		// 未持久化的变更已回滚，下一轮会再次检测到并重试
		log.Error("persist failed, change not applied", "url", id, "error", err)
		return outcomeFailed
	}
	if !applied {
		log.Debug("no change", "url", id)
		return outcomeUnchanged
	}

	diffText := Truncate(differ.Unified(old, content), p.DiffLimit)
	log.Info("change detected", "url", id, "diff_chars", len([]rune(diffText)))
	if p.Notifier != nil {
		p.Notifier.NotifyChange(ctx, id, diffText)
	}
	return outcomeChanged
}
