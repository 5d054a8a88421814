package app

import (
	"context"
	"errors"
	"log/slog"

	"DocWatch/scheduler"
	"DocWatch/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrMissingDependencies = errors.New("missing dependencies")

// Tracker 是 App 生命周期需要的 Tracker 能力。
type Tracker interface {
	Len() int
	Close() error
}

// App 把命令监听和定时轮询两个任务挂在同一个 ctx 下运行。
type App struct {
	Tracker   Tracker
	Poller    *PollerService
	Notifier  *NotifierService
	Scheduler *scheduler.IntervalScheduler
	Sender    telegram.Sender

	HandleMessage  func(msg *tgbotapi.Message)
	HandleCallback func(cb *tgbotapi.CallbackQuery)

	Logger *slog.Logger
}

// Run 阻塞直到 ctx 取消；退出前把 Tracker 状态完整落盘一次。
func (a *App) Run(ctx context.Context) error {
	if a.Tracker == nil || a.Poller == nil || a.Scheduler == nil || a.Sender == nil {
		return ErrMissingDependencies
	}
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "app")

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if err := a.Sender.StartListener(ctx, a.HandleCallback, a.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("telegram listener stopped", "error", err)
		}
	}()

	log.Info("monitoring started", "tracked", a.Tracker.Len())
	if a.Notifier != nil {
		a.Notifier.NotifyReady(ctx, a.Tracker.Len())
	}

	err := a.Scheduler.Run(ctx, a.Poller.Run)
	<-listenerDone

	if cerr := a.Tracker.Close(); cerr != nil {
		log.Error("final flush failed", "error", cerr)
		return cerr
	}
	log.Info("monitoring stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
