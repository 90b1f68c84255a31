// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kb-rag-api/pkg/metrics"
)

// Repository 知识库分块向量仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	TenantID       string
	QueryVector    []float32
	TopK           int
	Threshold      float64
	EmbeddingModel string
}

// SearchResult 检索结果。Score 为余弦相似度（COSINE 度量下越大越相近）。
type SearchResult struct {
	ID         string
	Score      float32
	TenantID   string
	DocumentID string
	ChunkIndex int64
	Content    string
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// CreatePartition 创建租户分区
func (r *Repository) CreatePartition(ctx context.Context, collection, tenantID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreatePartition",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("partition", PartitionName(tenantID)),
		))
	defer span.End()

	collName := r.client.CollectionName(collection)
	return r.client.milvus.CreatePartition(ctx, collName, PartitionName(tenantID))
}

// SearchChunks 在租户分区内检索分块。
// 过滤表达式叠加 tenant_id 与 embedding_model：分区 + 表达式双重圈定，
// 任何一层失效另一层仍然兜底。
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.String("tenant_id", params.TenantID),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionKnowledgeChunks)
	partitionName := PartitionName(params.TenantID)
	start := time.Now()

	// 租户还没有任何文档时分区不存在，返回空结果而不是报错
	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(collName, "error").Inc()
		return nil, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		metrics.MilvusSearchTotal.WithLabelValues(collName, "empty_partition").Inc()
		return []*SearchResult{}, nil
	}

	filter := fmt.Sprintf(`tenant_id == "%s"`, params.TenantID)
	if params.EmbeddingModel != "" {
		filter += fmt.Sprintf(` && embedding_model == "%s"`, params.EmbeddingModel)
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		[]string{"id", "tenant_id", "document_id", "chunk_index", "content"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(collName).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(collName, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(collName, "success").Inc()

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			// COSINE 度量下 Score 即余弦相似度，低于阈值的命中直接丢弃
			if float64(result.Scores[i]) < params.Threshold {
				continue
			}
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if tenantCol, ok := result.Fields.GetColumn("tenant_id").(*entity.ColumnVarChar); ok {
				sr.TenantID = tenantCol.Data()[i]
			}
			if docCol, ok := result.Fields.GetColumn("document_id").(*entity.ColumnVarChar); ok {
				sr.DocumentID = docCol.Data()[i]
			}
			if idxCol, ok := result.Fields.GetColumn("chunk_index").(*entity.ColumnInt64); ok {
				sr.ChunkIndex = idxCol.Data()[i]
			}
			if contentCol, ok := result.Fields.GetColumn("content").(*entity.ColumnVarChar); ok {
				sr.Content = contentCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertChunks 插入分块
func (r *Repository) InsertChunks(ctx context.Context, tenantID string, chunks []*KnowledgeChunk) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID),
			attribute.Int("count", len(chunks)),
		))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionKnowledgeChunks)
	partitionName := PartitionName(tenantID)

	has, _ := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if !has {
		if err := r.CreatePartition(ctx, CollectionKnowledgeChunks, tenantID); err != nil {
			return err
		}
	}

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	tenantIDs := make([]string, len(chunks))
	documentIDs := make([]string, len(chunks))
	chunkIndexes := make([]int64, len(chunks))
	models := make([]string, len(chunks))
	contents := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		tenantIDs[i] = c.TenantID
		documentIDs[i] = c.DocumentID
		chunkIndexes[i] = c.ChunkIndex
		models[i] = c.EmbeddingModel
		contents[i] = c.Content
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, vectors)
	tenantCol := entity.NewColumnVarChar("tenant_id", tenantIDs)
	docCol := entity.NewColumnVarChar("document_id", documentIDs)
	idxCol := entity.NewColumnInt64("chunk_index", chunkIndexes)
	modelCol := entity.NewColumnVarChar("embedding_model", models)
	contentCol := entity.NewColumnVarChar("content", contents)

	_, err := r.client.milvus.Insert(ctx, collName, partitionName,
		idCol, vectorCol, tenantCol, docCol, idxCol, modelCol, contentCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return nil
}

// DeleteChunksByDocument 删除文档的全部分块（限定在租户分区内）
func (r *Repository) DeleteChunksByDocument(ctx context.Context, tenantID, documentID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "milvus.DeleteChunksByDocument",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantID),
			attribute.String("document_id", documentID),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionKnowledgeChunks)
	partitionName := PartitionName(tenantID)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return nil
	}

	filter := fmt.Sprintf(`tenant_id == "%s" && document_id == "%s"`, tenantID, documentID)
	if err := r.client.milvus.Delete(ctx, collName, partitionName, filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// EnsureKnowledgeChunksCollection 确保集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureKnowledgeChunksCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionKnowledgeChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, KnowledgeChunksSchema()); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入
		_ = r.CreateIndex(ctx, CollectionKnowledgeChunks)
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionKnowledgeChunks)
}

// RebuildIndex 重建索引
func (r *Repository) RebuildIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.RebuildIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	if err := r.client.milvus.ReleaseCollection(ctx, collName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to release collection: %w", err)
	}

	// 旧索引可能不存在，忽略删除失败
	_ = r.client.milvus.DropIndex(ctx, collName, "vector")

	if err := r.CreateIndex(ctx, collection); err != nil {
		return err
	}

	return r.client.milvus.LoadCollection(ctx, collName, false)
}
