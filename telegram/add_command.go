package telegram

import (
	"context"
	"errors"
	"fmt"

	"DocWatch/tracker"
)

func (h *CommandHandler) handleAddCommand(operator string, args []string) {
	if len(args) < 1 {
		h.sendText("用法: /add <url>")
		return
	}
	url := normalizeURL(args[0])
	if url == "" {
		h.sendText("用法: /add <url>")
		return
	}

	ctx := context.Background()
	if h.AddTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.AddTimeout)
		defer cancel()
	}

	err := h.Tracker.Add(ctx, url)
	switch {
	case err == nil:
		h.sendText(fmt.Sprintf("✅ 已添加监控: %s\n操作人: %s", url, operator))
	case errors.Is(err, tracker.ErrAlreadyTracked):
		h.sendText(fmt.Sprintf("%s 已在监控列表中。", url))
	case errors.Is(err, tracker.ErrFetchFailed):
		h.sendText(fmt.Sprintf("❌ 无法获取页面内容: %s", url))
	default:
		h.sendText(fmt.Sprintf("⚠️ 添加监控失败: %s (%v)", url, err))
	}
}
