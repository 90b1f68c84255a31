package rag

import (
	"fmt"
	"strings"
)

// maxContextChars 上下文块的字符上限，防止极端长分块撑爆下游 Prompt
const maxContextChars = 24000

// BuildPromptContext 将命中分块拼装为单个有序上下文块。
// 每个分块一个带编号的小节，标注来源文档标题与段序号，
// 供下游生成环节直接注入 Prompt 并按编号引用。
//
// 第二个返回值是实际写入上下文的分块数：达到字符上限后剩余分块
// 不再写入，调用方展示来源时只能使用前 rendered 个命中。
func BuildPromptContext(matches []Match) (string, int) {
	if len(matches) == 0 {
		return "", 0
	}

	var b strings.Builder
	rendered := 0
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := m.DocumentTitle
		if title == "" {
			title = "未命名文档"
		}
		b.WriteString(fmt.Sprintf("[%d] %s（第 %d 段）\n", i+1, title, m.ChunkIndex+1))
		b.WriteString(strings.TrimSpace(m.Content))
		rendered++
		if b.Len() >= maxContextChars {
			break
		}
	}
	return truncateRunes(b.String(), maxContextChars), rendered
}

// truncateRunes 按 rune 截断，避免切出半个多字节字符
func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
