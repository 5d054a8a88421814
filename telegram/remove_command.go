package telegram

import (
	"errors"
	"fmt"

	"DocWatch/tracker"
)

func (h *CommandHandler) handleRemoveCommand(operator string, args []string) {
	if len(args) < 1 {
		h.sendText("用法: /remove <url>")
		return
	}
	url := normalizeURL(args[0])

	err := h.Tracker.Remove(url)
	switch {
	case err == nil:
		h.sendText(fmt.Sprintf("❌ 已取消监控: %s\n操作人: %s", url, operator))
	case errors.Is(err, tracker.ErrNotTracked):
		h.sendText(fmt.Sprintf("%s 不在监控列表中。", url))
	default:
		h.sendText(fmt.Sprintf("⚠️ 取消监控失败: %s (%v)", url, err))
	}
}
