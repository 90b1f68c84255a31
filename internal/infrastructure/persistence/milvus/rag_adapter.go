package milvus

import (
	"context"

	"kb-rag-api/internal/application/rag"
)

// RAGAdapter 将 Milvus 仓储适配为应用层的 rag.VectorRepository
type RAGAdapter struct {
	repo *Repository
}

// NewRAGAdapter 创建适配器
func NewRAGAdapter(repo *Repository) *RAGAdapter {
	return &RAGAdapter{repo: repo}
}

var _ rag.VectorRepository = (*RAGAdapter)(nil)

// EnsureCollection 确保集合可用
func (a *RAGAdapter) EnsureCollection(ctx context.Context) error {
	return a.repo.EnsureKnowledgeChunksCollection(ctx)
}

// InsertChunk 写入单个分块
func (a *RAGAdapter) InsertChunk(ctx context.Context, chunk *rag.VectorChunk) (string, error) {
	err := a.repo.InsertChunks(ctx, chunk.TenantID, []*KnowledgeChunk{
		{
			ID:             chunk.ID,
			Vector:         chunk.Vector,
			TenantID:       chunk.TenantID,
			DocumentID:     chunk.DocumentID,
			ChunkIndex:     int64(chunk.ChunkIndex),
			EmbeddingModel: chunk.EmbeddingModel,
			Content:        chunk.Content,
		},
	})
	if err != nil {
		return "", err
	}
	return chunk.ID, nil
}

// Search 租户内向量检索
func (a *RAGAdapter) Search(ctx context.Context, params *rag.VectorSearchParams) ([]*rag.VectorMatch, error) {
	results, err := a.repo.SearchChunks(ctx, &SearchParams{
		TenantID:       params.TenantID,
		QueryVector:    params.QueryVector,
		TopK:           params.TopK,
		Threshold:      params.Threshold,
		EmbeddingModel: params.EmbeddingModel,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]*rag.VectorMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, &rag.VectorMatch{
			ChunkID:    r.ID,
			TenantID:   r.TenantID,
			DocumentID: r.DocumentID,
			ChunkIndex: int(r.ChunkIndex),
			Content:    r.Content,
			Similarity: float64(r.Score),
		})
	}
	return matches, nil
}

// DeleteByDocument 删除文档的全部分块
func (a *RAGAdapter) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	return a.repo.DeleteChunksByDocument(ctx, tenantID, documentID)
}
