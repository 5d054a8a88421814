package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"DocWatch/tools"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender 抽象出 Telegram 发送能力，便于替换和测试。
type Sender interface {
	Send(ctx context.Context, msg string) error
	SendWithButtons(ctx context.Context, msg string, buttons [][]Button) error
	StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error
}

type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg string) error { return nil }
func (NoopSender) SendWithButtons(ctx context.Context, msg string, buttons [][]Button) error {
	return nil
}
func (NoopSender) StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error {
	<-ctx.Done()
	return nil
}

// ErrNoChat 表示未配置目标会话，消息无处可发。
var ErrNoChat = errors.New("telegram chat id is not configured")

// BotSender 实现了带简单重试和节流的 Telegram 发送能力。
type BotSender struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	retryTimes int
	rate       *time.Ticker
	timeout    time.Duration
}

func NewBotSender(token string, chatID int64, retryTimes int, rateInterval time.Duration, timeout time.Duration) (*BotSender, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	sender := newBotSender(bot, chatID, retryTimes, rateInterval, timeout)
	SetDefaultSender(sender)
	return sender, nil
}

func newBotSender(bot *tgbotapi.BotAPI, chatID int64, retryTimes int, rateInterval time.Duration, timeout time.Duration) *BotSender {
	if rateInterval <= 0 {
		rateInterval = time.Second
	}
	return &BotSender{
		bot:        bot,
		chatID:     chatID,
		retryTimes: retryTimes,
		rate:       time.NewTicker(rateInterval),
		timeout:    timeout,
	}
}

// BotName 返回机器人用户名，用于启动日志。
func (s *BotSender) BotName() string {
	return s.bot.Self.UserName
}

// MaxMessageBytes 是单条消息的发送上限，留出余量给分页前缀。
const MaxMessageBytes = 3800

func (s *BotSender) Send(ctx context.Context, msg string) error {
	if s.chatID == 0 {
		return ErrNoChat
	}
	parts := splitTelegramText(msg, MaxMessageBytes)
	for i, p := range parts {
		if len(parts) > 1 {
			p = fmt.Sprintf("(%d/%d)\n%s", i+1, len(parts), p)
		}
		if err := s.sendWithMarkup(ctx, tgbotapi.NewMessage(s.chatID, p)); err != nil {
			return err
		}
	}
	return nil
}

func (s *BotSender) SendWithButtons(ctx context.Context, msg string, buttons [][]Button) error {
	if s.chatID == 0 {
		return ErrNoChat
	}
	message := tgbotapi.NewMessage(s.chatID, tools.TruncateBytes(msg, MaxMessageBytes))
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range buttons {
		var row []tgbotapi.InlineKeyboardButton
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return s.sendWithMarkup(ctx, message)
}

func splitTelegramText(s string, limit int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{""}
	}
	if len(s) <= limit {
		return []string{s}
	}

	var out []string
	for len(s) > limit {
		// 1) 优先在 limit 以内找最后一个换行
		cut := strings.LastIndex(s[:limit], "\n")
		// 2) 换行不好用，再找空格
		if cut < limit/3 {
			cut = strings.LastIndex(s[:limit], " ")
		}
		// 3) 还是没有就硬切，退到 rune 边界
		if cut <= 0 {
			cut = tools.RuneBoundary(s, limit)
		}

		part := strings.TrimSpace(s[:cut])
		if part != "" {
			out = append(out, part)
		}
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func (s *BotSender) sendWithMarkup(ctx context.Context, msg tgbotapi.MessageConfig) error {
	for attempt := 0; attempt <= s.retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.rate.C:
			result := make(chan error, 1)
			sendCtx := ctx
			cancel := func() {}
			if s.timeout > 0 {
				sendCtx, cancel = context.WithTimeout(ctx, s.timeout)
			}

			go func() {
				_, err := s.bot.Send(msg)
				result <- err
			}()

			select {
			case <-sendCtx.Done():
				cancel()
				if attempt == s.retryTimes {
					return fmt.Errorf("发送 Telegram 超时: %w", sendCtx.Err())
				}
				continue
			case err := <-result:
				cancel()
				if err == nil {
					return nil
				}
				if attempt == s.retryTimes {
					return fmt.Errorf("发送 Telegram 失败: %w", err)
				}
				time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			}
		}
	}
	return nil
}

func (s *BotSender) StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.bot.GetUpdatesChan(u)
	defer s.bot.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return errors.New("telegram updates channel closed")
			}
			if up.CallbackQuery != nil && handleCallback != nil {
				handleCallback(up.CallbackQuery)
				cb := tgbotapi.NewCallback(up.CallbackQuery.ID, "操作已收到")
				_, _ = s.bot.Request(cb)
			}
			if up.Message != nil && handleMessage != nil {
				handleMessage(up.Message)
			}
		}
	}
}
