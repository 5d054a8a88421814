package differ

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const contextLines = 3

// Unified 返回 old -> new 的按行 unified diff（---/+++ 头、@@ 块、' '/'-'/'+' 前缀）。
// 两者相同时返回空串。
func Unified(old, new string) string {
	if old == new {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: "previous",
		ToFile:   "current",
		Context:  contextLines,
	})
	if err != nil {
		// 写 strings.Builder 不会失败，这里只是兜底
		return ""
	}
	return strings.TrimRight(text, "\n")
}
