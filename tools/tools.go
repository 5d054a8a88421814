package tools

import (
	"unicode/utf8"
)

// TruncateRunes 按字符数截断，不会切坏多字节字符。limit<=0 表示不截断。
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// TruncateBytes 按字节上限截断，并回退到最近的字符边界。
func TruncateBytes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:RuneBoundary(s, limit)]
}

// RuneBoundary 返回不大于 n 的最近字符起始位置。
func RuneBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
