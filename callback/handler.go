package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"DocWatch/telegram"
	"DocWatch/tracker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Remover 是按钮回调需要的 Tracker 能力。
type Remover interface {
	Remove(id string) error
}

// Handler 处理变更通知上的内联按钮回调。
// callbackData 格式：action|token
type Handler struct {
	Tracker Remover
	Sender  telegram.Sender
	Logger  *slog.Logger
}

func NewHandler(tr Remover, sender telegram.Sender, logger *slog.Logger) *Handler {
	if sender == nil {
		sender = telegram.DefaultSender()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Tracker: tr, Sender: sender, Logger: logger.With("component", "callback")}
}

func (h *Handler) HandleCallback(cb *tgbotapi.CallbackQuery) {
	if cb == nil {
		return
	}
	parts := strings.Split(cb.Data, "|")
	action := parts[0]

	// 避免“处理中”按钮再触发一堆日志
	if action == "noop" {
		return
	}
	if len(parts) < 2 {
		h.Logger.Warn("invalid callback data", "data", cb.Data)
		return
	}

	user := "unknown"
	if cb.From != nil {
		user = cb.From.UserName
	}
	h.Logger.Info("callback received", "action", action, "user", user)

	switch action {
	case "unwatch":
		h.handleUnwatch(parts[1], user)
	default:
		h.Logger.Warn("unknown callback action", "action", action)
	}
}

func (h *Handler) handleUnwatch(token, user string) {
	url, ok := telegram.GetUnwatchURL(token)
	if !ok {
		h.send("按钮已过期，请使用 /remove <url> 取消监控。")
		return
	}

	err := h.Tracker.Remove(url)
	switch {
	case err == nil:
		telegram.ClearUnwatchToken(token)
		h.send(fmt.Sprintf("❌ 已取消监控: %s (操作人: %s)", url, user))
	case errors.Is(err, tracker.ErrNotTracked):
		telegram.ClearUnwatchToken(token)
		h.send(fmt.Sprintf("%s 不在监控列表中。", url))
	default:
		h.send(fmt.Sprintf("⚠️ 取消监控失败: %s (%v)", url, err))
	}
}

func (h *Handler) send(msg string) {
	if err := h.Sender.Send(context.Background(), msg); err != nil {
		h.Logger.Warn("reply failed", "error", err)
	}
}
