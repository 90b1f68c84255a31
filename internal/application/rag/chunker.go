package rag

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkTargetWords 单个分块的目标词数上限
	DefaultChunkTargetWords = 500
	// DefaultChunkOverlapWords 相邻分块之间的重叠词数
	DefaultChunkOverlapWords = 50

	// minChunkChars 低于该字符数的分块视为噪声丢弃
	minChunkChars = 100
	// maxListLineRatio 列表行占比超过该值的分块视为目录/索引片段丢弃
	maxListLineRatio = 0.7
)

// listLinePattern 匹配列表行：无序列表符号或“数字+分隔符”开头
var listLinePattern = regexp.MustCompile(`^\s*([-*•]|\d+[.)、])\s`)

// Chunker 基于段落边界的文本分块器。
// 纯函数式：同样的输入永远产出同样的分块序列，不依赖任何外部状态。
type Chunker struct {
	targetWords  int
	overlapWords int
}

// NewChunker 创建分块器；参数非法时回退到默认值
func NewChunker(targetWords, overlapWords int) *Chunker {
	if targetWords <= 0 {
		targetWords = DefaultChunkTargetWords
	}
	if overlapWords < 0 || overlapWords >= targetWords {
		overlapWords = DefaultChunkOverlapWords
	}
	return &Chunker{targetWords: targetWords, overlapWords: overlapWords}
}

// Chunk 将纯文本切分为带重叠的分块序列。
//
// 流程：统一换行符 -> 按空行切段 -> 贪心聚合到目标词数 ->
// 相邻分块间保留重叠 -> 质量过滤。
// 单个段落超过目标词数时不再二次切割，整段成块。
func (c *Chunker) Chunk(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var (
		chunks  []string
		current []string
		words   int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.Join(current, "\n\n")
		chunks = append(chunks, chunk)

		// 用上一块的尾部为下一块“播种”重叠。
		// 末段本身很短（不超过重叠窗口的两倍）时整段保留，避免切出半句话。
		last := current[len(current)-1]
		seed := last
		if lastWords := countWords(last); lastWords > 2*c.overlapWords {
			seed = tailWords(last, c.overlapWords)
		}
		current = current[:0]
		if seed != "" && c.overlapWords > 0 {
			current = append(current, seed)
			words = countWords(seed)
		} else {
			words = 0
		}
	}

	for _, p := range paragraphs {
		pw := countWords(p)
		if words > 0 && words+pw > c.targetWords {
			flush()
		}
		current = append(current, p)
		words += pw
	}
	// flush 只发生在追加段落之前，循环结束时 current 必然以真实段落收尾
	chunks = append(chunks, strings.Join(current, "\n\n"))

	return filterChunks(chunks)
}

// splitParagraphs 统一换行符后按空行切分段落，丢弃空白段
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		paragraphs []string
		buf        []string
	)
	emit := func() {
		if len(buf) == 0 {
			return
		}
		p := strings.TrimSpace(strings.Join(buf, "\n"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		buf = buf[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		buf = append(buf, line)
	}
	emit()
	return paragraphs
}

// filterChunks 质量过滤：太短的丢弃；列表行占比过高的丢弃
func filterChunks(chunks []string) []string {
	var out []string
	for _, chunk := range chunks {
		if len(chunk) < minChunkChars {
			continue
		}
		if listRatio(chunk) > maxListLineRatio {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// listRatio 计算非空行中列表行的占比
func listRatio(chunk string) float64 {
	var total, list int
	for _, line := range strings.Split(chunk, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if listLinePattern.MatchString(line) {
			list++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(list) / float64(total)
}

// countWords 按空白分割计数
func countWords(s string) int {
	return len(strings.Fields(s))
}

// tailWords 取末尾 n 个词，保持原有词序
func tailWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[len(fields)-n:], " ")
}
