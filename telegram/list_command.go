package telegram

import (
	"fmt"
	"strings"
)

func (h *CommandHandler) handleListCommand() {
	ids := h.Tracker.List()
	if len(ids) == 0 {
		h.sendText("当前没有监控任何页面。")
		return
	}
	h.sendText(fmt.Sprintf("📌 当前监控的页面（%d）:\n%s", len(ids), strings.Join(ids, "\n")))
}
