package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kb-rag-api/pkg/errors"
)

func newTestEngine(vector *fakeVectorRepo, titles *fakeTitleDirectory) *Engine {
	return NewEngine(&fakeEmbedder{}, vector, titles, EngineConfig{
		TopK:              5,
		MatchThreshold:    0.3,
		CitationThreshold: 0.4,
		EmbeddingModel:    testModel,
	})
}

func matchFor(tenantID, docID string, chunkIndex int, similarity float64) *VectorMatch {
	return &VectorMatch{
		ChunkID:    fmt.Sprintf("%s-%d", docID, chunkIndex),
		TenantID:   tenantID,
		DocumentID: docID,
		ChunkIndex: chunkIndex,
		Content:    fmt.Sprintf("content of %s chunk %d", docID, chunkIndex),
		Similarity: similarity,
	}
}

func TestEngine_RetrieveBuildsContextAndSources(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "入门指南")
	titles.set("tenant-a", "doc-2", "发布流程")
	vector.searchResult = []*VectorMatch{
		matchFor("tenant-a", "doc-1", 0, 0.82),
		matchFor("tenant-a", "doc-2", 3, 0.55),
		// 过了 match 阈值但没过 citation 阈值：进上下文，不进来源
		matchFor("tenant-a", "doc-1", 4, 0.35),
	}
	engine := newTestEngine(vector, titles)

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{
		TenantID: "tenant-a",
		Query:    "如何发布新版本",
	})

	require.NoError(t, err)
	require.Len(t, out.Matches, 3)
	require.Len(t, out.Sources, 2)

	assert.Equal(t, "doc-1", out.Sources[0].DocumentID)
	assert.Equal(t, "入门指南", out.Sources[0].DocumentTitle)
	assert.Equal(t, "doc-2", out.Sources[1].DocumentID)

	// 上下文包含全部命中，按相似度降序编号
	assert.Contains(t, out.Context, "[1] 入门指南")
	assert.Contains(t, out.Context, "[2] 发布流程")
	assert.Contains(t, out.Context, "[3] 入门指南")
	assert.Contains(t, out.Context, "content of doc-2 chunk 3")

	// 检索参数带租户与模型过滤
	require.NotNil(t, vector.lastSearch)
	assert.Equal(t, "tenant-a", vector.lastSearch.TenantID)
	assert.Equal(t, testModel, vector.lastSearch.EmbeddingModel)
	assert.Equal(t, 5, vector.lastSearch.TopK)
	assert.InDelta(t, 0.3, vector.lastSearch.Threshold, 1e-9)
}

func TestEngine_SourcesAreSubsetOfMatches(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "入门指南")
	vector.searchResult = []*VectorMatch{
		matchFor("tenant-a", "doc-1", 0, 0.9),
		matchFor("tenant-a", "doc-1", 1, 0.39),
		matchFor("tenant-a", "doc-1", 2, 0.31),
	}
	engine := newTestEngine(vector, titles)

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a", Query: "q"})
	require.NoError(t, err)

	inMatches := map[string]bool{}
	for _, m := range out.Matches {
		inMatches[m.ChunkID] = true
	}
	for _, s := range out.Sources {
		assert.True(t, inMatches[fmt.Sprintf("%s-%d", s.DocumentID, s.ChunkIndex)])
		assert.GreaterOrEqual(t, s.Similarity, 0.4)
	}
	require.Len(t, out.Sources, 1)
}

func TestEngine_TruncatedContextDropsOverflowSources(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "超长文档")
	titles.set("tenant-a", "doc-2", "发布流程")

	// 第一条命中是单段超长分块，独占整个上下文窗口；
	// 第二条过了 citation 阈值，但已经写不进上下文
	oversized := matchFor("tenant-a", "doc-1", 0, 0.9)
	oversized.Content = strings.Repeat("长", 30000)
	vector.searchResult = []*VectorMatch{
		oversized,
		matchFor("tenant-a", "doc-2", 1, 0.45),
	}
	engine := newTestEngine(vector, titles)

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a", Query: "q"})
	require.NoError(t, err)

	// 没进上下文的分块不能对用户列为出处
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "doc-1", out.Sources[0].DocumentID)
	assert.NotContains(t, out.Context, "content of doc-2 chunk 1")

	// Matches 保留全部命中（debug 接口依赖），只有 Sources 收紧
	assert.Len(t, out.Matches, 2)
}

func TestEngine_EmptyResultIsNotAnError(t *testing.T) {
	engine := newTestEngine(newFakeVectorRepo(), newFakeTitleDirectory())

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a", Query: "没有知识"})

	require.NoError(t, err)
	assert.Empty(t, out.Context)
	assert.Empty(t, out.Sources)
	assert.Empty(t, out.Matches)
}

func TestEngine_ForeignTenantResultAbortsRetrieval(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "入门指南")
	vector.searchResult = []*VectorMatch{
		matchFor("tenant-a", "doc-1", 0, 0.9),
		// 存储层过滤失效的模拟：结果里混入了其他租户的分块
		matchFor("tenant-b", "doc-x", 0, 0.8),
	}
	engine := newTestEngine(vector, titles)

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a", Query: "q"})

	// 绝不静默过滤：整个请求失败
	require.ErrorIs(t, err, apperrors.ErrTenantIsolation)
	assert.Nil(t, out)
}

func TestEngine_DeterministicOrderingWithTies(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "入门指南")
	vector.searchResult = []*VectorMatch{
		matchFor("tenant-a", "doc-1", 7, 0.5),
		matchFor("tenant-a", "doc-1", 2, 0.5),
		matchFor("tenant-a", "doc-1", 0, 0.8),
	}
	engine := newTestEngine(vector, titles)

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a", Query: "q"})
	require.NoError(t, err)
	require.Len(t, out.Matches, 3)

	// 相似度降序；同分按段序号升序
	assert.Equal(t, 0, out.Matches[0].ChunkIndex)
	assert.Equal(t, 2, out.Matches[1].ChunkIndex)
	assert.Equal(t, 7, out.Matches[2].ChunkIndex)
}

func TestEngine_DropsChunksOfDeletedDocuments(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "入门指南")
	vector.searchResult = []*VectorMatch{
		matchFor("tenant-a", "doc-1", 0, 0.9),
		// doc-gone 在元数据库里已不存在（删除竞态留下的陈旧索引）
		matchFor("tenant-a", "doc-gone", 1, 0.7),
	}
	engine := newTestEngine(vector, titles)

	out, err := engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a", Query: "q"})

	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "doc-1", out.Matches[0].DocumentID)
	require.Len(t, out.Sources, 1)
}

func TestEngine_RepeatedQueryIsIdempotent(t *testing.T) {
	vector := newFakeVectorRepo()
	titles := newFakeTitleDirectory()
	titles.set("tenant-a", "doc-1", "入门指南")
	vector.searchResult = []*VectorMatch{
		matchFor("tenant-a", "doc-1", 0, 0.9),
		matchFor("tenant-a", "doc-1", 1, 0.6),
	}
	engine := newTestEngine(vector, titles)
	input := &RetrieveInput{TenantID: "tenant-a", Query: "q"}

	first, err := engine.Retrieve(context.Background(), input)
	require.NoError(t, err)
	second, err := engine.Retrieve(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_ValidatesInput(t *testing.T) {
	engine := newTestEngine(newFakeVectorRepo(), newFakeTitleDirectory())

	_, err := engine.Retrieve(context.Background(), nil)
	assert.Error(t, err)

	_, err = engine.Retrieve(context.Background(), &RetrieveInput{Query: "q"})
	assert.Error(t, err)

	_, err = engine.Retrieve(context.Background(), &RetrieveInput{TenantID: "tenant-a"})
	assert.Error(t, err)
}
