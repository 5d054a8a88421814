package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Tracker 是命令层需要的监控集合操作。
type Tracker interface {
	Add(ctx context.Context, id string) error
	Remove(id string) error
	List() []string
}

// CommandHandler 处理群组中的命令消息，把 /add /remove /list 转成 Tracker 调用。
type CommandHandler struct {
	Tracker Tracker
	Sender  Sender
	ChatID  int64
	// AddTimeout 限制 /add 首次抓取的总耗时。
	AddTimeout time.Duration
}

func NewCommandHandler(tracker Tracker, sender Sender, chatID int64) *CommandHandler {
	if sender == nil {
		sender = DefaultSender()
	}
	return &CommandHandler{Tracker: tracker, Sender: sender, ChatID: chatID, AddTimeout: time.Minute}
}

func (h *CommandHandler) HandleMessage(msg *tgbotapi.Message) {
	if msg == nil {
		return
	}
	if h.ChatID != 0 && msg.Chat != nil && msg.Chat.ID != h.ChatID {
		return
	}
	if !msg.IsCommand() {
		return
	}
	args := strings.Fields(msg.CommandArguments())
	operator := formatOperator(msg.From)
	switch strings.ToLower(msg.Command()) {
	case "add":
		go h.handleAddCommand(operator, args)
	case "remove":
		go h.handleRemoveCommand(operator, args)
	case "list", "list_assets":
		go h.handleListCommand()
	case "help", "start":
		go h.sendText(helpText)
	}
}
