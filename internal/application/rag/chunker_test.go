package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeParagraph 生成 n 个带前缀的单词组成的单行段落
func makeParagraph(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%04d", prefix, i)
	}
	return strings.Join(words, " ")
}

func TestChunker_EmptyInput(t *testing.T) {
	c := NewChunker(500, 50)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n  \t \n"))
}

func TestChunker_SingleShortDocument(t *testing.T) {
	c := NewChunker(500, 50)
	text := makeParagraph("word", 40)

	chunks := c.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_Deterministic(t *testing.T) {
	c := NewChunker(500, 50)
	var parts []string
	for i := 0; i < 8; i++ {
		parts = append(parts, makeParagraph(fmt.Sprintf("p%d", i), 150))
	}
	text := strings.Join(parts, "\n\n")

	first := c.Chunk(text)
	second := c.Chunk(text)

	assert.Equal(t, first, second)
}

func TestChunker_NormalizesLineEndings(t *testing.T) {
	c := NewChunker(500, 50)
	p1 := makeParagraph("alpha", 60)
	p2 := makeParagraph("beta", 60)

	unix := c.Chunk(p1 + "\n\n" + p2)
	windows := c.Chunk(p1 + "\r\n\r\n" + p2)
	oldMac := c.Chunk(p1 + "\r\r" + p2)

	assert.Equal(t, unix, windows)
	assert.Equal(t, unix, oldMac)
}

func TestChunker_SplitsAtTargetWords(t *testing.T) {
	c := NewChunker(500, 0)
	// 每段 400 词，两段合并会超过 500，必须各自成块
	p1 := makeParagraph("p1w", 400)
	p2 := makeParagraph("p2w", 400)

	chunks := c.Chunk(p1 + "\n\n" + p2)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0])
	assert.Equal(t, p2, chunks[1])
}

func TestChunker_AccumulatesParagraphsUpToTarget(t *testing.T) {
	c := NewChunker(500, 0)
	p1 := makeParagraph("p1w", 200)
	p2 := makeParagraph("p2w", 200)
	p3 := makeParagraph("p3w", 200)

	chunks := c.Chunk(strings.Join([]string{p1, p2, p3}, "\n\n"))

	// p1+p2=400 词可并块；加 p3 超出后另起新块
	require.Len(t, chunks, 2)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0])
	assert.Equal(t, p3, chunks[1])
}

func TestChunker_OverlapCarriesTailWords(t *testing.T) {
	c := NewChunker(500, 50)
	p1 := makeParagraph("p1w", 300)
	p2 := makeParagraph("p2w", 300)

	chunks := c.Chunk(p1 + "\n\n" + p2)
	require.Len(t, chunks, 2)

	// 第一块收尾处的 50 词必须原样出现在第二块开头
	tail := tailWords(chunks[0], 50)
	assert.Equal(t, 50, countWords(tail))
	assert.True(t, strings.HasSuffix(chunks[0], tail))
	assert.True(t, strings.HasPrefix(chunks[1], tail))
}

func TestChunker_OverlapKeepsShortParagraphWhole(t *testing.T) {
	c := NewChunker(500, 50)
	p1 := makeParagraph("p1w", 400)
	// 末段 80 词，不超过重叠窗口的两倍，应整段进入下一块
	p2 := makeParagraph("p2w", 80)
	p3 := makeParagraph("p3w", 400)

	chunks := c.Chunk(strings.Join([]string{p1, p2, p3}, "\n\n"))
	require.Len(t, chunks, 2)

	assert.True(t, strings.HasSuffix(chunks[0], p2))
	assert.True(t, strings.HasPrefix(chunks[1], p2))
}

func TestChunker_FiltersTinyChunks(t *testing.T) {
	c := NewChunker(500, 50)

	// 单段不足 100 字符，应被质量过滤丢弃
	chunks := c.Chunk("too short to keep")

	assert.Empty(t, chunks)
}

func TestChunker_FiltersListHeavyChunks(t *testing.T) {
	c := NewChunker(500, 50)
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("- list entry number %d with some words", i))
	}
	// 21 行里 20 行是列表项，超过 70% 阈值
	lines = append(lines, "closing remark for this section")

	chunks := c.Chunk(strings.Join(lines, "\n"))

	assert.Empty(t, chunks)
}

func TestChunker_KeepsProseWithFewListLines(t *testing.T) {
	c := NewChunker(500, 50)
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, makeParagraph(fmt.Sprintf("line%d", i), 12))
	}
	lines = append(lines, "- single list item inside prose")

	chunks := c.Chunk(strings.Join(lines, "\n"))

	require.Len(t, chunks, 1)
}

func TestChunker_OversizedParagraphStaysWhole(t *testing.T) {
	c := NewChunker(500, 50)
	// 单段 900 词，超过目标也不做段内切割
	p := makeParagraph("big", 900)

	chunks := c.Chunk(p)

	require.Len(t, chunks, 1)
	assert.Equal(t, p, chunks[0])
}
