package app

import (
	"context"
	"fmt"
	"log/slog"

	"DocWatch/telegram"
	"DocWatch/tools"
)

// NotifierService 把变更消息投递到唯一的通知会话。
// 投递失败只记录告警，从不向上传播，以免打断轮询。
type NotifierService struct {
	Sender    telegram.Sender
	DiffLimit int
	Logger    *slog.Logger
}

func (n *NotifierService) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default().With("component", "notifier")
	}
	return n.Logger
}

// Notify 发送纯文本消息。返回值表示是否送达。
func (n *NotifierService) Notify(ctx context.Context, msg string) bool {
	if n.Sender == nil {
		n.logger().Warn("channel unavailable", "error", ErrMissingDependencies)
		return false
	}
	if err := n.Sender.Send(ctx, msg); err != nil {
		n.logger().Warn("channel unavailable", "error", err)
		return false
	}
	return true
}

// NotifyChange 发送某个页面的 diff，并附带“停止监控”按钮。
// 消息按纯文本发送；diff 先按 DiffLimit 截断字符数，
// 再保证加上标题后整条消息不超过 telegram.MaxMessageBytes。
func (n *NotifierService) NotifyChange(ctx context.Context, url, diffText string) bool {
	if n.Sender == nil {
		n.logger().Warn("channel unavailable", "url", url, "error", ErrMissingDependencies)
		return false
	}
	msg := changeMessage(url, diffText, n.DiffLimit)
	buttons := [][]telegram.Button{{
		{Text: "停止监控", CallbackData: "unwatch|" + telegram.SetUnwatchToken(url)},
	}}
	if err := n.Sender.SendWithButtons(ctx, msg, buttons); err != nil {
		n.logger().Warn("channel unavailable", "url", url, "error", err)
		return false
	}
	return true
}

// NotifyReady 启动提示，尽力而为。
func (n *NotifierService) NotifyReady(ctx context.Context, tracked int) bool {
	return n.Notify(ctx, fmt.Sprintf("✅ 文档监控已上线，当前监控 %d 个页面。", tracked))
}

func changeMessage(url, diffText string, limit int) string {
	header := fmt.Sprintf("🚨 文档已更新: %s 🚨\n\n", url)
	if limit > 0 {
		diffText = Truncate(diffText, limit)
	}
	if room := telegram.MaxMessageBytes - len(header); room > 0 {
		diffText = tools.TruncateBytes(diffText, room)
	} else {
		diffText = ""
	}
	return header + diffText
}

// Truncate 截断 diff 文本到 limit 个字符。
func Truncate(s string, limit int) string {
	return tools.TruncateRunes(s, limit)
}
