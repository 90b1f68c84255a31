package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-rag-api/internal/domain/entity"
	apperrors "kb-rag-api/pkg/errors"
)

const testModel = "BAAI/bge-m3"

// fiveChunkText 构造会被切成恰好 5 块的文本：
// 每段 400 词且重叠为 0，每段各自成块。
func fiveChunkText() string {
	parts := make([]string, 5)
	for i := range parts {
		parts[i] = makeParagraph(chunkMarker(i), 400)
	}
	return strings.Join(parts, "\n\n")
}

func chunkMarker(i int) string {
	return "chunk" + string(rune('a'+i)) + "w"
}

func newTestIngestor(embedder *fakeEmbedder, vector *fakeVectorRepo, docs *fakeDocumentRepo) *Ingestor {
	return NewIngestor(embedder, vector, docs, newFakeTitleDirectory(),
		NewChunker(500, 0), testModel, 2)
}

func TestIngestor_AllChunksStored(t *testing.T) {
	vector := newFakeVectorRepo()
	docs := newFakeDocumentRepo()
	ing := newTestIngestor(&fakeEmbedder{}, vector, docs)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "运维手册",
		Source:   "upload",
		Text:     fiveChunkText(),
	})

	require.NoError(t, err)
	assert.Equal(t, 5, result.ChunksProduced)
	assert.Equal(t, 5, result.ChunksStored)
	assert.Empty(t, result.FailedChunks())
	require.Len(t, vector.inserted, 5)

	// 每个分块都带租户、文档与模型标识
	for _, c := range vector.inserted {
		assert.Equal(t, "tenant-a", c.TenantID)
		assert.Equal(t, result.DocumentID, c.DocumentID)
		assert.Equal(t, testModel, c.EmbeddingModel)
		assert.NotEmpty(t, c.Vector)
	}

	doc, err := docs.GetByID(context.Background(), "tenant-a", result.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, entity.DocumentStatusReady, doc.Status)
	assert.Equal(t, 5, doc.ChunkCount)
	assert.Equal(t, testModel, doc.EmbeddingModel)
}

func TestIngestor_SingleChunkEmbedFailureIsIsolated(t *testing.T) {
	vector := newFakeVectorRepo()
	docs := newFakeDocumentRepo()
	// 第 3 块（下标 2）嵌入失败，其余不受影响
	ing := newTestIngestor(&fakeEmbedder{failOn: chunkMarker(2)}, vector, docs)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "运维手册",
		Text:     fiveChunkText(),
	})

	require.NoError(t, err)
	assert.Equal(t, 5, result.ChunksProduced)
	assert.Equal(t, 4, result.ChunksStored)

	failed := result.FailedChunks()
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Index)
	assert.Equal(t, "embed", failed[0].Stage)
	assert.Error(t, failed[0].Err)

	// chunk_count 只统计成功入库的分块
	doc, _ := docs.GetByID(context.Background(), "tenant-a", result.DocumentID)
	require.NotNil(t, doc)
	assert.Equal(t, 4, doc.ChunkCount)
	assert.Equal(t, entity.DocumentStatusReady, doc.Status)
}

func TestIngestor_StoreFailureRecordedPerChunk(t *testing.T) {
	vector := newFakeVectorRepo()
	vector.failOnIndex = 1
	docs := newFakeDocumentRepo()
	ing := newTestIngestor(&fakeEmbedder{}, vector, docs)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "运维手册",
		Text:     fiveChunkText(),
	})

	require.NoError(t, err)
	assert.Equal(t, 4, result.ChunksStored)

	failed := result.FailedChunks()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
	assert.Equal(t, "store", failed[0].Stage)
}

func TestIngestor_AllChunksFailedMarksDocumentFailed(t *testing.T) {
	vector := newFakeVectorRepo()
	docs := newFakeDocumentRepo()
	// 所有分块都命中失败标记
	ing := newTestIngestor(&fakeEmbedder{failOn: "chunk"}, vector, docs)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "运维手册",
		Text:     fiveChunkText(),
	})

	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 5, result.ChunksProduced)
	assert.Equal(t, 0, result.ChunksStored)
	assert.Len(t, result.FailedChunks(), 5)

	doc, _ := docs.GetByID(context.Background(), "tenant-a", result.DocumentID)
	require.NotNil(t, doc)
	assert.Equal(t, entity.DocumentStatusFailed, doc.Status)
	assert.Equal(t, 0, doc.ChunkCount)
}

func TestIngestor_EmptyDocumentReturnsNoChunks(t *testing.T) {
	docs := newFakeDocumentRepo()
	ing := newTestIngestor(&fakeEmbedder{}, newFakeVectorRepo(), docs)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "空白文档",
		Text:     "short",
	})

	require.ErrorIs(t, err, apperrors.ErrNoChunks)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.ChunksProduced)

	doc, _ := docs.GetByID(context.Background(), "tenant-a", result.DocumentID)
	require.NotNil(t, doc)
	assert.Equal(t, entity.DocumentStatusFailed, doc.Status)
}

func TestIngestor_ValidatesInput(t *testing.T) {
	ing := newTestIngestor(&fakeEmbedder{}, newFakeVectorRepo(), newFakeDocumentRepo())

	_, err := ing.Ingest(context.Background(), &IngestInput{Title: "t", Text: "x"})
	assert.Error(t, err)

	_, err = ing.Ingest(context.Background(), &IngestInput{TenantID: "tenant-a", Text: "x"})
	assert.Error(t, err)

	_, err = ing.Ingest(context.Background(), &IngestInput{TenantID: "tenant-a", Title: "t"})
	assert.Error(t, err)
}

func TestIngestor_DeleteRemovesChunksAndInvalidatesCache(t *testing.T) {
	vector := newFakeVectorRepo()
	docs := newFakeDocumentRepo()
	titles := newFakeTitleDirectory()
	ing := NewIngestor(&fakeEmbedder{}, vector, docs, titles, NewChunker(500, 0), testModel, 2)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "运维手册",
		Text:     fiveChunkText(),
	})
	require.NoError(t, err)
	require.Len(t, vector.inserted, 5)

	require.NoError(t, ing.Delete(context.Background(), "tenant-a", result.DocumentID))

	assert.Empty(t, vector.inserted)
	assert.Contains(t, titles.invalidated, "tenant-a/"+result.DocumentID)
	doc, _ := docs.GetByID(context.Background(), "tenant-a", result.DocumentID)
	assert.Nil(t, doc)
}

func TestIngestor_DeleteOtherTenantDocumentFails(t *testing.T) {
	vector := newFakeVectorRepo()
	docs := newFakeDocumentRepo()
	ing := newTestIngestor(&fakeEmbedder{}, vector, docs)

	result, err := ing.Ingest(context.Background(), &IngestInput{
		TenantID: "tenant-a",
		Title:    "运维手册",
		Text:     fiveChunkText(),
	})
	require.NoError(t, err)

	// 其他租户拿着同一个 document_id 也删不掉
	err = ing.Delete(context.Background(), "tenant-b", result.DocumentID)
	require.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Len(t, vector.inserted, 5)
}
