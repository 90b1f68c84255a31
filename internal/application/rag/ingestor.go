// Package rag 实现知识库的摄取与检索核心流程
package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"kb-rag-api/internal/domain/entity"
	"kb-rag-api/internal/domain/repository"
	apperrors "kb-rag-api/pkg/errors"
	"kb-rag-api/pkg/logger"
	"kb-rag-api/pkg/metrics"
	"kb-rag-api/pkg/tracer"
)

const (
	// defaultEmbedConcurrency 分块嵌入的并发上限
	defaultEmbedConcurrency = 4
	// chunkEmbedTimeout 单个分块嵌入+入库的超时
	chunkEmbedTimeout = 30 * time.Second
)

// Ingestor 文档摄取流水线：分块 -> 嵌入 -> 向量入库 -> 回写元数据。
// 单个分块失败不会中断整篇文档，失败明细逐块记入 IngestResult。
type Ingestor struct {
	embedder    embedding.Embedder
	vector      VectorRepository
	docs        repository.DocumentRepository
	titles      TitleDirectory
	chunker     *Chunker
	model       string
	concurrency int
}

// NewIngestor 创建摄取流水线
func NewIngestor(
	embedder embedding.Embedder,
	vector VectorRepository,
	docs repository.DocumentRepository,
	titles TitleDirectory,
	chunker *Chunker,
	model string,
	concurrency int,
) *Ingestor {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkTargetWords, DefaultChunkOverlapWords)
	}
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}
	return &Ingestor{
		embedder:    embedder,
		vector:      vector,
		docs:        docs,
		titles:      titles,
		chunker:     chunker,
		model:       model,
		concurrency: concurrency,
	}
}

// CreateDocument 创建 pending 状态的文档元数据行。
// 异步摄取场景下先建行拿到 document_id，再投递队列由 worker 执行 Process。
func (i *Ingestor) CreateDocument(ctx context.Context, input *IngestInput) (*entity.Document, error) {
	if err := validateIngestInput(input); err != nil {
		return nil, err
	}
	doc := entity.NewDocument(input.TenantID, input.Title, input.Source, i.model)
	doc.ID = uuid.NewString()
	if err := i.docs.Create(ctx, doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create document")
	}
	return doc, nil
}

// Ingest 同步摄取：创建文档行并立即执行完整流水线
func (i *Ingestor) Ingest(ctx context.Context, input *IngestInput) (*IngestResult, error) {
	doc, err := i.CreateDocument(ctx, input)
	if err != nil {
		return nil, err
	}
	return i.Process(ctx, doc, input.Text)
}

// Process 对已存在的文档执行分块/嵌入/入库，并回写最终状态。
//
// 返回的 IngestResult 总是非 nil（除参数错误外）：调用方即使收到错误
// 也能拿到逐块的失败明细。chunk_count 只统计成功入库的分块。
func (i *Ingestor) Process(ctx context.Context, doc *entity.Document, text string) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "rag.Ingestor.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", doc.TenantID),
		attribute.String("document_id", doc.ID),
	)
	ctx = logger.WithContext(ctx, logger.TenantIDKey, doc.TenantID)
	ctx = logger.WithContext(ctx, logger.DocumentIDKey, doc.ID)

	start := time.Now()
	result := &IngestResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Source:     doc.Source,
	}

	chunks := i.chunker.Chunk(text)
	result.ChunksProduced = len(chunks)
	metrics.ChunksProduced.WithLabelValues(doc.TenantID).Add(float64(len(chunks)))

	if len(chunks) == 0 {
		logger.Warn(ctx, "文档分块后无可用内容", "title", doc.Title)
		i.finalize(ctx, doc, result)
		return result, apperrors.ErrNoChunks
	}

	if i.embedder == nil || i.vector == nil {
		i.finalize(ctx, doc, result)
		return result, apperrors.Wrap(ErrVectorDisabled, apperrors.CodeIngestionFailed, "vector pipeline not configured")
	}
	if err := i.vector.EnsureCollection(ctx); err != nil {
		i.finalize(ctx, doc, result)
		return result, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to ensure collection")
	}

	result.Outcomes = i.embedAndStore(ctx, doc, chunks)
	for _, o := range result.Outcomes {
		if !o.Failed() {
			result.ChunksStored++
		} else {
			metrics.ChunksFailed.WithLabelValues(doc.TenantID, o.Stage).Inc()
		}
	}
	metrics.ChunksStored.WithLabelValues(doc.TenantID).Add(float64(result.ChunksStored))
	metrics.IngestionDuration.WithLabelValues(doc.TenantID).Observe(time.Since(start).Seconds())

	i.finalize(ctx, doc, result)

	if result.ChunksStored == 0 {
		logger.Error(ctx, "文档摄取失败：所有分块均未入库", nil,
			"chunks_produced", result.ChunksProduced)
		return result, apperrors.ErrIngestionFailed
	}
	logger.Info(ctx, "文档摄取完成",
		"chunks_produced", result.ChunksProduced,
		"chunks_stored", result.ChunksStored,
		"failed", result.ChunksProduced-result.ChunksStored,
		"duration", time.Since(start).String())
	return result, nil
}

// embedAndStore 并发嵌入并写入各分块。
// 每个分块独立嵌入调用：批量接口一败俱败，与逐块隔离的要求冲突。
// outcomes 按分块序号写入各自槽位，无共享写入。
func (i *Ingestor) embedAndStore(ctx context.Context, doc *entity.Document, chunks []string) []ChunkOutcome {
	outcomes := make([]ChunkOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for idx, chunk := range chunks {
		g.Go(func() error {
			outcomes[idx] = i.ingestOneChunk(gctx, doc, idx, chunk)
			// 单块失败不取消同文档的其他分块
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ingestOneChunk 嵌入并写入单个分块
func (i *Ingestor) ingestOneChunk(ctx context.Context, doc *entity.Document, idx int, chunk string) ChunkOutcome {
	ctx, cancel := context.WithTimeout(ctx, chunkEmbedTimeout)
	defer cancel()

	outcome := ChunkOutcome{Index: idx}

	vec, err := i.embedOne(ctx, chunk)
	if err != nil {
		outcome.Stage = "embed"
		outcome.Err = fmt.Errorf("embed chunk %d: %w", idx, err)
		logger.Warn(ctx, "分块嵌入失败", "chunk_index", idx, "error", err.Error())
		return outcome
	}

	id, err := i.vector.InsertChunk(ctx, &VectorChunk{
		ID:             uuid.NewString(),
		TenantID:       doc.TenantID,
		DocumentID:     doc.ID,
		ChunkIndex:     idx,
		EmbeddingModel: i.model,
		Content:        chunk,
		Vector:         vec,
	})
	if err != nil {
		outcome.Stage = "store"
		outcome.Err = fmt.Errorf("store chunk %d: %w", idx, err)
		logger.Warn(ctx, "分块入库失败", "chunk_index", idx, "error", err.Error())
		return outcome
	}
	outcome.ChunkID = id
	return outcome
}

// embedOne 调用嵌入服务并转换为 float32 向量
func (i *Ingestor) embedOne(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vectors, err := i.embedder.EmbedStrings(ctx, []string{text})
	metrics.EmbeddingCallDuration.WithLabelValues(i.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues(i.model, "error").Inc()
		return nil, err
	}
	metrics.EmbeddingCallTotal.WithLabelValues(i.model, "success").Inc()
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding service returned empty vector")
	}
	vec := make([]float32, len(vectors[0]))
	for j, v := range vectors[0] {
		vec[j] = float32(v)
	}
	return vec, nil
}

// finalize 回写文档状态与 chunk_count
func (i *Ingestor) finalize(ctx context.Context, doc *entity.Document, result *IngestResult) {
	if result.ChunksStored == 0 {
		doc.MarkFailed()
	} else {
		doc.MarkReady(result.ChunksStored)
	}
	if err := i.docs.UpdateIngestResult(ctx, doc.TenantID, doc.ID, doc.ChunkCount, doc.Status); err != nil {
		logger.Error(ctx, "回写文档摄取状态失败", err)
	}
	metrics.IngestionTotal.WithLabelValues(doc.TenantID, string(doc.Status)).Inc()
}

// Delete 删除文档：先清向量分块，再删元数据行，最后失效标题缓存
func (i *Ingestor) Delete(ctx context.Context, tenantID, documentID string) error {
	ctx, span := tracer.Start(ctx, "rag.Ingestor.Delete")
	defer span.End()

	doc, err := i.docs.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load document")
	}
	if doc == nil {
		return apperrors.ErrDocumentNotFound
	}

	if i.vector != nil {
		if err := i.vector.DeleteByDocument(ctx, tenantID, documentID); err != nil {
			return apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to delete document chunks")
		}
	}
	if err := i.docs.Delete(ctx, tenantID, documentID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete document")
	}
	if i.titles != nil {
		if err := i.titles.Invalidate(ctx, tenantID, documentID); err != nil {
			logger.Warn(ctx, "标题缓存失效失败", "error", err.Error())
		}
	}
	logger.Info(ctx, "文档已删除", "document_id", documentID)
	return nil
}

// validateIngestInput 参数校验
func validateIngestInput(input *IngestInput) error {
	if input == nil {
		return apperrors.New(apperrors.CodeInvalidParam, "invalid parameter").WithDetail("input is nil")
	}
	if input.TenantID == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "invalid parameter").WithDetail("tenant_id is required")
	}
	if input.Title == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "invalid parameter").WithDetail("title is required")
	}
	if input.Text == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "invalid parameter").WithDetail("text is required")
	}
	return nil
}
