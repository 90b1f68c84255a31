package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptContext_NumbersSections(t *testing.T) {
	matches := []Match{
		{DocumentTitle: "部署手册", ChunkIndex: 3, Content: "第一段内容", Similarity: 0.9},
		{DocumentTitle: "架构说明", ChunkIndex: 0, Content: "第二段内容", Similarity: 0.5},
	}

	ctx, rendered := BuildPromptContext(matches)

	assert.Equal(t, 2, rendered)
	assert.Contains(t, ctx, "[1] 部署手册（第 4 段）")
	assert.Contains(t, ctx, "[2] 架构说明（第 1 段）")
	assert.Contains(t, ctx, "第一段内容")
	assert.True(t, strings.Index(ctx, "[1]") < strings.Index(ctx, "[2]"))
}

func TestBuildPromptContext_EmptyMatches(t *testing.T) {
	ctx, rendered := BuildPromptContext(nil)
	assert.Equal(t, "", ctx)
	assert.Equal(t, 0, rendered)

	ctx, rendered = BuildPromptContext([]Match{})
	assert.Equal(t, "", ctx)
	assert.Equal(t, 0, rendered)
}

func TestBuildPromptContext_UntitledFallback(t *testing.T) {
	ctx, rendered := BuildPromptContext([]Match{{Content: "内容", ChunkIndex: 1}})
	assert.Equal(t, 1, rendered)
	assert.Contains(t, ctx, "未命名文档")
}

func TestBuildPromptContext_TruncatesOversizedContext(t *testing.T) {
	big := strings.Repeat("长", 20000)
	matches := []Match{
		{DocumentTitle: "甲", ChunkIndex: 0, Content: big},
		{DocumentTitle: "乙", ChunkIndex: 1, Content: big},
	}

	ctx, rendered := BuildPromptContext(matches)

	assert.LessOrEqual(t, len([]rune(ctx)), maxContextChars)
	// 第一块已撑满上限，第二块没有进入上下文
	assert.Equal(t, 1, rendered)
	assert.NotContains(t, ctx, "[2] 乙")
}

func TestBuildPromptContext_RenderedCountCoversAllWhenUnderLimit(t *testing.T) {
	matches := []Match{
		{DocumentTitle: "甲", ChunkIndex: 0, Content: "短内容一"},
		{DocumentTitle: "乙", ChunkIndex: 1, Content: "短内容二"},
		{DocumentTitle: "丙", ChunkIndex: 2, Content: "短内容三"},
	}

	ctx, rendered := BuildPromptContext(matches)

	assert.Equal(t, 3, rendered)
	assert.Contains(t, ctx, "[3] 丙")
}
