package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "📌 文档监控机器人\n" +
	"/add <url> 添加监控\n" +
	"/remove <url> 取消监控\n" +
	"/list 查看当前监控列表"

func (h *CommandHandler) sendText(msg string) {
	if err := h.Sender.Send(context.Background(), msg); err != nil {
		slog.Warn("reply failed", "component", "commands", "error", err)
	}
}

func formatOperator(u *tgbotapi.User) string {
	if u == nil {
		return "unknown"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return fmt.Sprintf("id:%d", u.ID)
}

// normalizeURL 去掉 Telegram 自动补的尖括号和首尾空白，缺协议时补 https://。
func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "<")
	u = strings.TrimSuffix(u, ">")
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	return u
}
