package rag

import "context"

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorRepository interface {
	EnsureCollection(ctx context.Context) error
	InsertChunk(ctx context.Context, chunk *VectorChunk) (string, error)
	Search(ctx context.Context, params *VectorSearchParams) ([]*VectorMatch, error)
	DeleteByDocument(ctx context.Context, tenantID, documentID string) error
}

// VectorChunk 待入库的分块
type VectorChunk struct {
	ID             string
	TenantID       string
	DocumentID     string
	ChunkIndex     int
	EmbeddingModel string
	Content        string
	Vector         []float32
}

// VectorSearchParams 检索参数。
// TenantID 与 EmbeddingModel 都进入存储层过滤表达式：
// 前者是租户隔离的硬约束，后者阻止跨模型向量被拿来比相似度。
type VectorSearchParams struct {
	TenantID       string
	QueryVector    []float32
	TopK           int
	Threshold      float64
	EmbeddingModel string
}

// VectorMatch 检索结果行。TenantID 原样返回，供上层做二次隔离校验。
type VectorMatch struct {
	ChunkID    string
	TenantID   string
	DocumentID string
	ChunkIndex int
	Content    string
	Similarity float64
}

// TitleDirectory 提供租户范围内的文档标题解析（可带缓存）。
// 实现必须按 tenantID 过滤：不属于该租户的 ID 不出现在结果里。
type TitleDirectory interface {
	ResolveTitles(ctx context.Context, tenantID string, ids []string) (map[string]string, error)
	Invalidate(ctx context.Context, tenantID, documentID string) error
}
