package telegram

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Telegram 的 callback_data 最多 64 字节，放不下完整 url，
// 这里用短 token 映射到 url。只存在内存中，重启后旧按钮失效。
var watchState = struct {
	mu     sync.Mutex
	tokens map[string]string
	byURL  map[string]string
}{
	tokens: make(map[string]string),
	byURL:  make(map[string]string),
}

// SetUnwatchToken 为 url 分配（或复用）一个回调 token。
func SetUnwatchToken(url string) string {
	watchState.mu.Lock()
	defer watchState.mu.Unlock()
	if token, ok := watchState.byURL[url]; ok {
		return token
	}
	token := newWatchToken()
	watchState.tokens[token] = url
	watchState.byURL[url] = token
	return token
}

func GetUnwatchURL(token string) (string, bool) {
	watchState.mu.Lock()
	defer watchState.mu.Unlock()
	url, ok := watchState.tokens[token]
	return url, ok
}

func ClearUnwatchToken(token string) {
	watchState.mu.Lock()
	defer watchState.mu.Unlock()
	if url, ok := watchState.tokens[token]; ok {
		delete(watchState.byURL, url)
	}
	delete(watchState.tokens, token)
}

func newWatchToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte("fallback"))
	}
	return hex.EncodeToString(buf)
}
