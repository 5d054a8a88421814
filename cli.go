package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"DocWatch/callback"
	"DocWatch/config"
	"DocWatch/fetcher"
	"DocWatch/internal/app"
	"DocWatch/scheduler"
	"DocWatch/snapshot"
	"DocWatch/telegram"
	"DocWatch/tracker"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:          "docwatch",
		Short:        "docwatch 定时抓取网页，发现文本变更后把 diff 推送到 Telegram。",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), configPath, logLevel)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "启动机器人和轮询（默认命令）",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), configPath, logLevel)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check <url>",
		Short: "抓取一次页面并打印抽取出的文本",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(pickLevel(logLevel, cfg.LogLevel))
			f := newFetcher(cfg, logger)
			text, ok := f.Fetch(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("无法获取页面内容: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "snapshots",
		Short: "列出持久化文件中的监控页面",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath)
			if err != nil {
				return err
			}
			repo, err := snapshot.Open(cfg.Storage.Driver, cfg.Storage.Path)
			if err != nil {
				return err
			}
			if c, ok := repo.(io.Closer); ok {
				defer c.Close()
			}
			snaps, err := repo.Load()
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(snaps))
			for id := range snaps {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "当前没有监控任何页面。")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintf(out, "%s\t%d lines\n", id, strings.Count(snaps[id], "\n")+1)
			}
			return nil
		},
	})

	return root
}

func runBot(ctx context.Context, configPath, logLevel string) error {
	if err := config.Load(configPath); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	cfg := config.Cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}

	logger := newLogger(pickLevel(logLevel, cfg.LogLevel))
	slog.SetDefault(logger)

	repo, err := snapshot.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("打开快照存储失败: %w", err)
	}
	if c, ok := repo.(io.Closer); ok {
		defer c.Close()
	}
	f := newFetcher(cfg, logger)

	tr, err := tracker.New(repo, f, logger)
	if err != nil {
		return err
	}

	var sender telegram.Sender
	botSender, err := telegram.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 2, time.Second, 10*time.Second)
	if err != nil {
		logger.Warn("telegram init failed, notifications disabled", "error", err)
		sender = telegram.NoopSender{}
		telegram.SetDefaultSender(sender)
	} else {
		logger.Info("telegram connected", "bot", botSender.BotName(), "chat_id", cfg.Telegram.ChatID)
		sender = botSender
	}

	commands := telegram.NewCommandHandler(tr, sender, cfg.Telegram.ChatID)
	commands.AddTimeout = cfg.FetchTimeout() + 5*time.Second
	callbacks := callback.NewHandler(tr, sender, logger)

	notifier := &app.NotifierService{
		Sender:    sender,
		DiffLimit: cfg.DiffLimit,
		Logger:    logger.With("component", "notifier"),
	}
	poller := &app.PollerService{
		Tracker:      tr,
		Fetcher:      f,
		Notifier:     notifier,
		Workers:      cfg.Workers,
		FetchTimeout: cfg.FetchTimeout(),
		DiffLimit:    cfg.DiffLimit,
		Logger:       logger.With("component", "poller"),
	}

	application := &app.App{
		Tracker:        tr,
		Poller:         poller,
		Notifier:       notifier,
		Scheduler:      scheduler.NewIntervalScheduler(cfg.PollInterval(), logger),
		Sender:         sender,
		HandleMessage:  commands.HandleMessage,
		HandleCallback: callbacks.HandleCallback,
		Logger:         logger,
	}
	return application.Run(ctx)
}

func newFetcher(cfg config.Config, logger *slog.Logger) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.Options{
		Timeout:      cfg.FetchTimeout(),
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Logger:       logger,
	})
}

func pickLevel(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}
