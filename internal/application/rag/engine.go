package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"

	apperrors "kb-rag-api/pkg/errors"
	"kb-rag-api/pkg/logger"
	"kb-rag-api/pkg/metrics"
	"kb-rag-api/pkg/tracer"
)

const (
	// DefaultTopK 单次检索返回的分块数上限
	DefaultTopK = 5
	// DefaultMatchThreshold 进入上下文的最低余弦相似度
	DefaultMatchThreshold = 0.3
	// DefaultCitationThreshold 对用户展示来源的最低余弦相似度。
	// 高于 match 阈值：弱相关内容可以辅助生成，但不值得当成出处亮给用户。
	DefaultCitationThreshold = 0.4
)

// EngineConfig 检索引擎参数
type EngineConfig struct {
	TopK              int
	MatchThreshold    float64
	CitationThreshold float64
	// EmbeddingModel 查询嵌入所用模型，同时作为检索过滤条件，
	// 保证只跟同一模型产出的向量比相似度。
	EmbeddingModel string
}

// Engine 检索引擎：查询嵌入 -> 租户内向量检索 -> 隔离校验 -> 标题解析 -> 上下文拼装。
// 只读流程，同一查询可安全重试。
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository
	titles   TitleDirectory
	cfg      EngineConfig
}

// NewEngine 创建检索引擎；阈值缺省时使用默认值
func NewEngine(embedder embedding.Embedder, vector VectorRepository, titles TitleDirectory, cfg EngineConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.CitationThreshold <= 0 {
		cfg.CitationThreshold = DefaultCitationThreshold
	}
	return &Engine{embedder: embedder, vector: vector, titles: titles, cfg: cfg}
}

// Retrieve 在租户知识库内检索与查询相关的上下文。
//
// 无命中时返回空的 RetrieveOutput 而不是错误：知识库为空或查询
// 无关联是正常业务状态。错误只在嵌入、向量检索或隔离校验失败时返回。
func (e *Engine) Retrieve(ctx context.Context, input *RetrieveInput) (*RetrieveOutput, error) {
	ctx, span := tracer.Start(ctx, "rag.Engine.Retrieve")
	defer span.End()

	if input == nil || input.TenantID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "invalid parameter").WithDetail("tenant_id is required")
	}
	if input.Query == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "invalid parameter").WithDetail("query is required")
	}
	span.SetAttributes(attribute.String("tenant_id", input.TenantID))
	ctx = logger.WithContext(ctx, logger.TenantIDKey, input.TenantID)

	if e.embedder == nil || e.vector == nil {
		metrics.RetrievalTotal.WithLabelValues(input.TenantID, "error").Inc()
		return nil, apperrors.Wrap(ErrVectorDisabled, apperrors.CodeRetrievalFailed, "vector retrieval not configured")
	}

	queryVec, err := e.embedQuery(ctx, input.Query)
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues(input.TenantID, "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "failed to embed query")
	}

	raw, err := e.vector.Search(ctx, &VectorSearchParams{
		TenantID:       input.TenantID,
		QueryVector:    queryVec,
		TopK:           e.cfg.TopK,
		Threshold:      e.cfg.MatchThreshold,
		EmbeddingModel: e.cfg.EmbeddingModel,
	})
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues(input.TenantID, "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeVectorDBError, "vector search failed")
	}

	// 二次隔离校验：存储层已按 tenant_id 过滤，这里再逐条核对。
	// 任何不一致都说明隔离被破坏，立即告警失败，绝不过滤后继续。
	for _, m := range raw {
		if m.TenantID != input.TenantID {
			metrics.TenantIsolationViolations.Inc()
			metrics.RetrievalTotal.WithLabelValues(input.TenantID, "isolation_violation").Inc()
			logger.Error(ctx, "检索结果出现跨租户数据，立即中止", apperrors.ErrTenantIsolation,
				"chunk_id", m.ChunkID,
				"foreign_tenant_id", m.TenantID)
			return nil, apperrors.ErrTenantIsolation
		}
	}

	matches, err := e.resolveMatches(ctx, input.TenantID, raw)
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues(input.TenantID, "error").Inc()
		return nil, err
	}

	contextBlock, rendered := BuildPromptContext(matches)
	out := &RetrieveOutput{
		Matches: matches,
		Context: contextBlock,
	}
	// 来源必须是上下文的子集：被字符上限挤出上下文的分块不能列为出处
	for _, m := range matches[:rendered] {
		if m.Similarity >= e.cfg.CitationThreshold {
			out.Sources = append(out.Sources, Citation{
				DocumentID:    m.DocumentID,
				DocumentTitle: m.DocumentTitle,
				ChunkIndex:    m.ChunkIndex,
				Similarity:    m.Similarity,
			})
		}
	}

	metrics.RetrievalTotal.WithLabelValues(input.TenantID, "success").Inc()
	metrics.RetrievalMatches.WithLabelValues(input.TenantID).Observe(float64(len(matches)))
	metrics.RetrievalCitations.WithLabelValues(input.TenantID).Observe(float64(len(out.Sources)))
	logger.Info(ctx, "检索完成",
		"matches", len(matches),
		"citations", len(out.Sources))
	return out, nil
}

// resolveMatches 解析标题并排序。
// 标题解析走租户范围的查询，作为第二道隔离防线：
// 分块所属文档在该租户下已不存在时（删除竞态或陈旧索引），整条丢弃。
func (e *Engine) resolveMatches(ctx context.Context, tenantID string, raw []*VectorMatch) ([]Match, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// 相似度降序，相同相似度按段序号升序，保证结果确定
	sort.SliceStable(raw, func(a, b int) bool {
		if raw[a].Similarity != raw[b].Similarity {
			return raw[a].Similarity > raw[b].Similarity
		}
		return raw[a].ChunkIndex < raw[b].ChunkIndex
	})

	idSet := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, m := range raw {
		if _, ok := idSet[m.DocumentID]; !ok {
			idSet[m.DocumentID] = struct{}{}
			ids = append(ids, m.DocumentID)
		}
	}

	titles := map[string]string{}
	if e.titles != nil {
		var err error
		titles, err = e.titles.ResolveTitles(ctx, tenantID, ids)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to resolve document titles")
		}
	}

	matches := make([]Match, 0, len(raw))
	for _, m := range raw {
		title, ok := titles[m.DocumentID]
		if !ok && e.titles != nil {
			logger.Warn(ctx, "丢弃指向已删除文档的陈旧分块",
				"chunk_id", m.ChunkID,
				"document_id", m.DocumentID)
			continue
		}
		matches = append(matches, Match{
			ChunkID:       m.ChunkID,
			DocumentID:    m.DocumentID,
			DocumentTitle: title,
			ChunkIndex:    m.ChunkIndex,
			Content:       m.Content,
			Similarity:    m.Similarity,
		})
	}
	return matches, nil
}

// embedQuery 嵌入查询文本
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	vectors, err := e.embedder.EmbedStrings(ctx, []string{query})
	metrics.EmbeddingCallDuration.WithLabelValues(e.cfg.EmbeddingModel).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues(e.cfg.EmbeddingModel, "error").Inc()
		return nil, err
	}
	metrics.EmbeddingCallTotal.WithLabelValues(e.cfg.EmbeddingModel, "success").Inc()
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding service returned empty vector")
	}
	vec := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		vec[i] = float32(v)
	}
	return vec, nil
}
