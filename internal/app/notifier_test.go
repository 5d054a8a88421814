package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"DocWatch/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	buttons  []string
	err      error
}

func (f *fakeSender) Send(ctx context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) SendWithButtons(ctx context.Context, msg string, buttons [][]telegram.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	for _, row := range buttons {
		for _, b := range row {
			f.buttons = append(f.buttons, b.CallbackData)
		}
	}
	return nil
}

func (f *fakeSender) StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error {
	<-ctx.Done()
	return nil
}

func (f *fakeSender) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func TestNotifyChangeSendsDiffWithUnwatchButton(t *testing.T) {
	sender := &fakeSender{}
	n := &NotifierService{Sender: sender, DiffLimit: 1900}

	if !n.NotifyChange(context.Background(), "https://docs.example", "-B\n+X") {
		t.Fatalf("expected delivery to succeed")
	}
	msgs := sender.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "https://docs.example") || !strings.Contains(msgs[0], "-B\n+X") {
		t.Fatalf("unexpected message: %q", msgs[0])
	}
	if len(sender.buttons) != 1 || !strings.HasPrefix(sender.buttons[0], "unwatch|") {
		t.Fatalf("expected unwatch button, got %v", sender.buttons)
	}
	token := strings.TrimPrefix(sender.buttons[0], "unwatch|")
	if url, ok := telegram.GetUnwatchURL(token); !ok || url != "https://docs.example" {
		t.Fatalf("button token does not resolve to url: %q %v", url, ok)
	}
}

func TestNotifyChangeFitsMessageLimit(t *testing.T) {
	sender := &fakeSender{}
	n := &NotifierService{Sender: sender, DiffLimit: 1900}

	diff := strings.Repeat("+文档内容变更\n", 400)
	if !n.NotifyChange(context.Background(), "https://docs.example/zh", diff) {
		t.Fatalf("expected delivery to succeed")
	}
	msg := sender.snapshot()[0]
	if len(msg) > telegram.MaxMessageBytes {
		t.Fatalf("message is %d bytes, limit %d", len(msg), telegram.MaxMessageBytes)
	}
	if !utf8.ValidString(msg) {
		t.Fatalf("message is not valid utf-8")
	}
	if strings.Contains(msg, "```") {
		t.Fatalf("plain text message must not carry markdown fences: %q", msg[:80])
	}
	if !strings.HasPrefix(msg, "🚨 文档已更新: https://docs.example/zh 🚨\n\n+文档内容变更") {
		t.Fatalf("unexpected message head: %q", msg[:80])
	}
}

func TestNotifyDegradesWhenChannelUnavailable(t *testing.T) {
	n := &NotifierService{Sender: &fakeSender{err: errors.New("Bad Request: chat not found")}}

	if n.Notify(context.Background(), "hello") {
		t.Fatalf("expected delivery to report failure")
	}
	if n.NotifyChange(context.Background(), "u", "diff") {
		t.Fatalf("expected delivery to report failure")
	}
	if n.NotifyReady(context.Background(), 3) {
		t.Fatalf("expected delivery to report failure")
	}

	var missing NotifierService
	if missing.Notify(context.Background(), "x") {
		t.Fatalf("expected nil sender to be reported as unavailable")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 5000)
	if got := Truncate(long, 1900); len(got) != 1900 {
		t.Fatalf("expected 1900 chars, got %d", len(got))
	}
	if got := Truncate("short", 1900); got != "short" {
		t.Fatalf("short text must not change, got %q", got)
	}
	multi := strings.Repeat("变更", 1000)
	got := Truncate(multi, 1900)
	if utf8.RuneCountInString(got) != 1900 || !utf8.ValidString(got) {
		t.Fatalf("expected 1900 valid runes, got %d", utf8.RuneCountInString(got))
	}
	if got := Truncate(long, 0); got != long {
		t.Fatalf("non-positive limit disables truncation")
	}
}
